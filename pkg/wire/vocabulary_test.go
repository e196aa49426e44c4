package wire

import "testing"

func TestIsHandshakeReply(t *testing.T) {
	tests := []struct {
		name   string
		frames [][]byte
		want   bool
	}{
		{
			name:   "valid SM0 with 2 frames",
			frames: [][]byte{Header(PhaseSM0), []byte("salt-and-B")},
			want:   true,
		},
		{
			name:   "valid SM2 with 3 frames",
			frames: [][]byte{Header(PhaseSM2), []byte("proof"), []byte("extra")},
			want:   true,
		},
		{
			name:   "valid FF0",
			frames: [][]byte{Header(PhaseFatalFail), []byte("reason")},
			want:   true,
		},
		{
			name:   "wrong phase byte",
			frames: [][]byte{{SOH, ACK, 0xFF, BEL}, []byte("x")},
			want:   false,
		},
		{
			name:   "wrong leading bytes",
			frames: [][]byte{{0x02, ACK, byte(PhaseSM0), BEL}, []byte("x")},
			want:   false,
		},
		{
			name:   "header too short",
			frames: [][]byte{{SOH, ACK, byte(PhaseSM0)}, []byte("x")},
			want:   false,
		},
		{
			name:   "single frame",
			frames: [][]byte{Header(PhaseSM0)},
			want:   false,
		},
		{
			name:   "four frames",
			frames: [][]byte{Header(PhaseSM0), []byte("a"), []byte("b"), []byte("c")},
			want:   false,
		},
		{
			name:   "application payload",
			frames: [][]byte{[]byte("hello"), []byte("world")},
			want:   false,
		},
		{
			name:   "heartbeat sentinel is not a handshake reply",
			frames: [][]byte{HeartBeat},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHandshakeReply(tt.frames); got != tt.want {
				t.Errorf("IsHandshakeReply(%q) = %v, want %v", tt.frames, got, tt.want)
			}
		})
	}
}

func TestIsHandshakeReplyAcceptsExactlySevenPhases(t *testing.T) {
	accepted := 0
	for b := 0; b < 256; b++ {
		frames := [][]byte{{SOH, ACK, byte(b), BEL}, []byte("payload")}
		if IsHandshakeReply(frames) {
			accepted++
		}
	}
	if accepted != 7 {
		t.Errorf("IsHandshakeReply accepted %d phase values, want 7", accepted)
	}
}

func TestIsHeartBeat(t *testing.T) {
	if !IsHeartBeat([][]byte{HeartBeat}) {
		t.Error("HeartBeat frame not recognized")
	}
	if IsHeartBeat([][]byte{[]byte("not a heartbeat")}) {
		t.Error("non-heartbeat frame misclassified")
	}
	if IsHeartBeat(nil) {
		t.Error("empty frames misclassified as heartbeat")
	}
}

func TestPhaseOf(t *testing.T) {
	frames := [][]byte{Header(PhaseSM1), []byte("x")}
	if got := PhaseOf(frames); got != PhaseSM1 {
		t.Errorf("PhaseOf() = %v, want %v", got, PhaseSM1)
	}
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseFatalFail: "FF0",
		PhaseSM0:       "SM0",
		PhaseSF0:       "SF0",
		PhaseSM1:       "SM1",
		PhaseSF1:       "SF1",
		PhaseSM2:       "SM2",
		PhaseSF2:       "SF2",
		Phase(0x7F):    "UNKNOWN",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}
