// Package wire defines the frame-level vocabulary shared between the client
// and the remote peer: the control-header byte layout used to recognize
// handshake-step messages, and the fixed heartbeat sentinel.
//
// Nothing here touches the transport or the crypto; it only classifies an
// already-received sequence of frames.
package wire

import "bytes"

// Control-character values that open every handshake-control frame.
const (
	SOH byte = 0x01
	ACK byte = 0x06
	BEL byte = 0x07
)

// Phase identifies which step of the zero-knowledge handshake a
// handshake-control message carries.
type Phase byte

// The seven project-defined phase values. FF0 is a fatal-fail marker; SM*
// are server step messages driving the client forward; SF* are server
// failure signals paired with the SM step they answer.
const (
	PhaseFatalFail Phase = 0x00 // FF0
	PhaseSM0       Phase = 0x01
	PhaseSF0       Phase = 0x02
	PhaseSM1       Phase = 0x03
	PhaseSF1       Phase = 0x04
	PhaseSM2       Phase = 0x05
	PhaseSF2       Phase = 0x06
)

// String returns a human-readable phase name, mainly for log lines.
func (p Phase) String() string {
	switch p {
	case PhaseFatalFail:
		return "FF0"
	case PhaseSM0:
		return "SM0"
	case PhaseSF0:
		return "SF0"
	case PhaseSM1:
		return "SM1"
	case PhaseSF1:
		return "SF1"
	case PhaseSM2:
		return "SM2"
	case PhaseSF2:
		return "SF2"
	default:
		return "UNKNOWN"
	}
}

// isValidPhase reports whether b is one of the seven defined phase values.
func isValidPhase(b byte) bool {
	switch Phase(b) {
	case PhaseFatalFail, PhaseSM0, PhaseSF0, PhaseSM1, PhaseSF1, PhaseSM2, PhaseSF2:
		return true
	default:
		return false
	}
}

// HeaderSize is the length in bytes of a handshake-control header frame.
const HeaderSize = 4

// HeartBeat is the single-frame sentinel payload that signals liveness.
// It must never collide with a valid handshake-control header, which it
// can't: it is not four bytes long.
var HeartBeat = []byte{SOH, SOH, ACK, ACK, BEL}

// Header builds the four-byte handshake-control leading frame for the
// given phase: [SOH, ACK, PHASE, BEL].
func Header(p Phase) []byte {
	return []byte{SOH, ACK, byte(p), BEL}
}

// IsHeartBeat reports whether the first frame of a message is the
// heartbeat sentinel.
func IsHeartBeat(frames [][]byte) bool {
	if len(frames) == 0 {
		return false
	}
	return bytes.Equal(frames[0], HeartBeat)
}

// IsHandshakeReply reports whether frames is a well-formed handshake-control
// message: 2 or 3 frames, whose first frame is exactly four bytes with
// bytes 0, 1, 3 equal to SOH, ACK, BEL and byte 2 one of the seven defined
// phase values.
func IsHandshakeReply(frames [][]byte) bool {
	if len(frames) != 2 && len(frames) != 3 {
		return false
	}
	h := frames[0]
	if len(h) != HeaderSize {
		return false
	}
	if h[0] != SOH || h[1] != ACK || h[3] != BEL {
		return false
	}
	return isValidPhase(h[2])
}

// PhaseOf extracts the phase byte from a handshake-control message's
// leading frame. Callers must have already confirmed IsHandshakeReply.
func PhaseOf(frames [][]byte) Phase {
	return Phase(frames[0][2])
}
