package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"
	"time"

	"github.com/shadowmesh/msgwire/pkg/wire"
)

// serverSim is a minimal SRP-6a server counterpart used only to drive the
// client's dispatch loop through a real handshake in tests. It duplicates
// the RFC 5054 2048-bit group constants rather than reaching into
// pkg/srp's unexported group type, since this package has no business
// depending on that package's internals.
type serverSim struct {
	N, g, k *big.Int
	salt    []byte
	v       *big.Int
	A, b, B *big.Int
	u, s    *big.Int
}

const srpNHex = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

func padToN(v, n *big.Int) []byte {
	size := (n.BitLen() + 7) / 8
	b := v.Bytes()
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func hashInts(n *big.Int, vs ...*big.Int) *big.Int {
	h := sha256.New()
	for _, v := range vs {
		h.Write(padToN(v, n))
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func newServerSim(t *testing.T, identityName, identitySecret string) *serverSim {
	t.Helper()
	n, ok := new(big.Int).SetString(srpNHex, 16)
	if !ok {
		t.Fatal("bad N constant")
	}
	g := big.NewInt(2)

	h := sha256.New()
	h.Write(padToN(n, n))
	h.Write(padToN(g, n))
	k := new(big.Int).SetBytes(h.Sum(nil))

	salt := make([]byte, 16)
	rand.Read(salt)

	inner := sha256.New()
	inner.Write([]byte(identityName))
	inner.Write([]byte(":"))
	inner.Write([]byte(identitySecret))
	innerHash := inner.Sum(nil)
	outer := sha256.New()
	outer.Write(salt)
	outer.Write(innerHash)
	x := new(big.Int).SetBytes(outer.Sum(nil))

	v := new(big.Int).Exp(g, x, n)

	return &serverSim{N: n, g: g, k: k, salt: salt, v: v}
}

func (s *serverSim) handleInitiation(frames [][]byte) [][]byte {
	s.A = new(big.Int).SetBytes(frames[1])
	b, _ := rand.Int(rand.Reader, s.N)
	s.b = b

	kv := new(big.Int).Mul(s.k, s.v)
	gb := new(big.Int).Exp(s.g, b, s.N)
	B := new(big.Int).Add(kv, gb)
	B.Mod(B, s.N)
	s.B = B

	return [][]byte{wire.Header(wire.PhaseSM0), s.salt, s.B.Bytes()}
}

func (s *serverSim) handleReady() [][]byte {
	s.u = hashInts(s.N, s.A, s.B)
	vu := new(big.Int).Exp(s.v, s.u, s.N)
	avu := new(big.Int).Mul(s.A, vu)
	avu.Mod(avu, s.N)
	s.s = new(big.Int).Exp(avu, s.b, s.N)
	return [][]byte{wire.Header(wire.PhaseSM1), []byte("continue")}
}

func (s *serverSim) handleProof(frames [][]byte) [][]byte {
	m1 := new(big.Int).SetBytes(frames[1])
	m2 := hashInts(s.N, s.A, m1, s.s)
	return [][]byte{wire.Header(wire.PhaseSM2), m2.Bytes()}
}

// driveSuccessfulHandshake pumps a full handshake to completion against
// sock, reading the client's outbound steps and feeding back server
// replies computed by serverSim.
func driveSuccessfulHandshake(t *testing.T, sock *fakeSocket, srv *serverSim) {
	t.Helper()
	init := sock.sent()
	sock.deliver(srv.handleInitiation(init))

	sock.sent() // "ready"
	sock.deliver(srv.handleReady())

	proof := sock.sent()
	sock.deliver(srv.handleProof(proof))
}

func newTestClient(t *testing.T, sock *fakeSocket, opts ...Option) *Client {
	t.Helper()
	identity, err := newIdentity()
	if err != nil {
		t.Fatalf("newIdentity: %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	c, err := newWithSocket(identity, sock, o)
	if err != nil {
		t.Fatalf("newWithSocket: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPlaintextRoundTrip(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(t, sock)

	if !c.CanSend() {
		t.Fatal("plaintext client should be able to send immediately")
	}

	payload := [][]byte{[]byte("hello"), []byte("world")}
	if err := c.Send(payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := sock.sent()
	if len(got) != len(payload) {
		t.Fatalf("got %d frames, want %d", len(got), len(payload))
	}
	for i := range payload {
		if !bytes.Equal(got[i], payload[i]) {
			t.Errorf("frame %d = %q, want %q (plaintext mode must not transform frames)", i, got[i], payload[i])
		}
	}

	received := make(chan [][]byte, 1)
	c.OnMessageReceived(func(frames [][]byte, from Identity) {
		if from != c.ClientID() {
			t.Errorf("delivered ClientIdentity = %v, want %v", from, c.ClientID())
		}
		received <- frames
	})
	sock.deliver(payload)

	select {
	case frames := <-received:
		for i := range payload {
			if !bytes.Equal(frames[i], payload[i]) {
				t.Errorf("received frame %d = %q, want %q", i, frames[i], payload[i])
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnMessageReceived")
	}
}

func TestSendBeforeSecureFails(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(t, sock, WithCredentials("alice", "s3cret"))

	if c.CanSend() {
		t.Fatal("secured client should not be able to send before handshake")
	}
	if err := c.Send([][]byte{[]byte("x")}); err != ErrNotReady {
		t.Errorf("Send before secure = %v, want %v", err, ErrNotReady)
	}
}

func TestSendEmptyFramesFails(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(t, sock)
	if err := c.Send(nil); err != ErrInvalidArgument {
		t.Errorf("Send(nil) = %v, want %v", err, ErrInvalidArgument)
	}
	if err := c.Send([][]byte{}); err != ErrInvalidArgument {
		t.Errorf("Send([]) = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestSecuredHandshakeSuccessEnablesSend(t *testing.T) {
	const identityName, identitySecret = "alice", "s3cret"
	sock := newFakeSocket()
	c := newTestClient(t, sock, WithCredentials(identityName, identitySecret))
	srv := newServerSim(t, identityName, identitySecret)

	established := make(chan struct{}, 1)
	c.OnProtocolEstablished(func() { established <- struct{}{} })

	go driveSuccessfulHandshake(t, sock, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := c.SecureConnection(ctx, true)
	if err != nil {
		t.Fatalf("SecureConnection: %v", err)
	}
	if !ok {
		t.Fatal("SecureConnection returned false, want true")
	}

	select {
	case <-established:
	case <-time.After(time.Second):
		t.Fatal("OnProtocolEstablished did not fire")
	}

	if !c.CanSend() {
		t.Fatal("CanSend() should be true after a successful handshake")
	}

	if err := c.Send([][]byte{[]byte("secured payload")}); err != nil {
		t.Fatalf("Send after handshake: %v", err)
	}
	encrypted := sock.sent()
	if bytes.Equal(encrypted[0], []byte("secured payload")) {
		t.Error("frame was sent in the clear after a secured handshake")
	}
}

func TestSecuredHandshakeRejectedProofFires(t *testing.T) {
	const identityName, identitySecret = "carol", "correct-secret"
	sock := newFakeSocket()
	c := newTestClient(t, sock, WithCredentials(identityName, identitySecret))
	srv := newServerSim(t, identityName, "a-different-secret-entirely")

	failed := make(chan error, 1)
	c.OnProtocolFailed(func(err error) { failed <- err })

	go func() {
		init := sock.sent()
		sock.deliver(srv.handleInitiation(init))
		sock.sent() // "ready"
		sock.deliver(srv.handleReady())
		proof := sock.sent()
		sock.deliver(srv.handleProof(proof))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, _ := c.SecureConnection(ctx, true)
	if ok {
		t.Fatal("SecureConnection succeeded despite a mismatched verifier")
	}

	select {
	case <-failed:
	case <-time.After(time.Second):
		t.Fatal("OnProtocolFailed did not fire")
	}

	if c.CanSend() {
		t.Error("CanSend() should remain false after a rejected handshake")
	}
}

func TestMalformedHandshakeFrameFiresInvalidMessage(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(t, sock, WithCredentials("dave", "pw"))

	invalid := make(chan [][]byte, 1)
	c.OnInvalidMessageReceived(func(frames [][]byte) { invalid <- frames })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go c.SecureConnection(ctx, false)

	sock.sent() // consume the initiation frames
	sock.deliver([][]byte{[]byte("not a handshake reply")})

	select {
	case frames := <-invalid:
		if len(frames) != 1 || string(frames[0]) != "not a handshake reply" {
			t.Errorf("unexpected invalid frames: %v", frames)
		}
	case <-time.After(time.Second):
		t.Fatal("OnInvalidMessageReceived did not fire")
	}
}

func TestCloseIsIdempotentAndDisablesSend(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(t, sock)

	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := c.Send([][]byte{[]byte("x")}); err != ErrDisposed {
		t.Errorf("Send after Close = %v, want %v", err, ErrDisposed)
	}
}
