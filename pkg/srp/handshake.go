// Package srp implements the client side of a zero-knowledge, password-based
// mutual-authentication handshake (an SRP-6a instance over the RFC 5054
// 2048-bit group) and the authenticated symmetric channel derived from it.
//
// The five-state machine and its Create*/Process* operations mirror the
// shape of the teacher's client-side handshake orchestrator
// (client/daemon/handshake.go and shared/protocol/handshake.go in the
// retrieved CG-8663-shadowmesh tree): a struct owns transient exchange
// state, each step consumes the previous server message and returns the
// next client message, and the final step derives the session keys with
// HKDF before installing them.
package srp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/hkdf"
)

// State is the handshake's current step.
type State int

const (
	StateInit State = iota
	StateAwaitSM0
	StateAwaitSM1
	StateAwaitSM2
	StateEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateAwaitSM0:
		return "AwaitSM0"
	case StateAwaitSM1:
		return "AwaitSM1"
	case StateAwaitSM2:
		return "AwaitSM2"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ErrInvalidState is returned when a Create*/Process* call is made out of
// the sequence the state machine expects.
var ErrInvalidState = errors.New("srp: handshake called out of sequence")

// ErrMalformedServerMessage is returned when a server step's frames don't
// have the shape this exchange requires.
var ErrMalformedServerMessage = errors.New("srp: malformed server handshake message")

const hkdfInfoSend = "msgwire-srp-v1-tx"
const hkdfInfoRecv = "msgwire-srp-v1-rx"

// HandshakeSession drives one client-side SRP-6a exchange from identity and
// secret through to an installed Crypto channel. It is mutated exclusively
// by the dispatch loop (see pkg/client); the Crypto slot is published
// through an atomic pointer so the wire loop can read it without a lock.
type HandshakeSession struct {
	identityName   string
	identitySecret string
	grp            *group

	state State

	a *big.Int // client ephemeral private exponent
	A *big.Int // client ephemeral public value

	salt []byte
	B    *big.Int // server ephemeral public value

	premaster *big.Int // shared secret S
	m1        *big.Int // client proof

	lastHeartBeatUnixNano atomic.Int64
	crypto                atomic.Pointer[Crypto]
}

// NewHandshakeSession creates a fresh session for the given credentials.
// The session starts in StateInit and must be driven through
// CreateInitiationRequest first.
func NewHandshakeSession(identityName, identitySecret string) *HandshakeSession {
	hs := &HandshakeSession{
		identityName:   identityName,
		identitySecret: identitySecret,
		grp:            rfc5054Group2048,
		state:          StateInit,
	}
	hs.lastHeartBeatUnixNano.Store(time.Now().UnixNano())
	return hs
}

// State returns the session's current step, mainly for logging and tests.
func (hs *HandshakeSession) State() State { return hs.state }

// Crypto returns the installed symmetric channel, or nil if the handshake
// has not yet completed. Safe to call concurrently with the dispatch loop.
func (hs *HandshakeSession) Crypto() *Crypto {
	return hs.crypto.Load()
}

// LastHeartBeat returns the wall-clock time of the most recent inbound
// heartbeat, initialized to session creation time.
func (hs *HandshakeSession) LastHeartBeat() time.Time {
	return time.Unix(0, hs.lastHeartBeatUnixNano.Load())
}

// RecordHeartBeat updates LastHeartBeat to now.
func (hs *HandshakeSession) RecordHeartBeat() {
	hs.lastHeartBeatUnixNano.Store(time.Now().UnixNano())
}

// CreateInitiationRequest generates the client's ephemeral key pair and
// returns the first client->server frames: identity name and public value
// A. Advances the state to AwaitSM0.
func (hs *HandshakeSession) CreateInitiationRequest() ([][]byte, error) {
	if hs.state != StateInit {
		return nil, fmt.Errorf("srp: CreateInitiationRequest: %w (state %s)", ErrInvalidState, hs.state)
	}

	a, err := rand.Int(rand.Reader, hs.grp.N)
	if err != nil {
		return nil, fmt.Errorf("srp: generating ephemeral secret: %w", err)
	}
	// a must not be the zero exponent; extremely unlikely, but regenerate
	// deterministically rather than special-casing downstream math.
	if a.Sign() == 0 {
		a = big.NewInt(1)
	}
	hs.a = a
	hs.A = new(big.Int).Exp(hs.grp.g, a, hs.grp.N)

	hs.state = StateAwaitSM0
	return [][]byte{[]byte(hs.identityName), hs.A.Bytes()}, nil
}

// CreateHandshakeRequest consumes the server's SM0 reply (salt, B),
// derives the shared premaster secret, and returns the client's
// acknowledgement step. Advances the state to AwaitSM1.
func (hs *HandshakeSession) CreateHandshakeRequest(serverFrames [][]byte) ([][]byte, error) {
	if hs.state != StateAwaitSM0 {
		return nil, fmt.Errorf("srp: CreateHandshakeRequest: %w (state %s)", ErrInvalidState, hs.state)
	}
	if len(serverFrames) != 3 {
		hs.state = StateFailed
		return nil, fmt.Errorf("srp: CreateHandshakeRequest: %w: want 3 frames (header, salt, B), got %d", ErrMalformedServerMessage, len(serverFrames))
	}
	salt := serverFrames[1]
	b := new(big.Int).SetBytes(serverFrames[2])
	if b.Sign() == 0 || new(big.Int).Mod(b, hs.grp.N).Sign() == 0 {
		hs.state = StateFailed
		return nil, fmt.Errorf("srp: CreateHandshakeRequest: %w: server public value B is invalid", ErrMalformedServerMessage)
	}
	hs.salt = salt
	hs.B = b

	x := hs.derivePrivateKey(salt)
	u := hs.grp.hashInts(hs.A, hs.B)
	if u.Sign() == 0 {
		hs.state = StateFailed
		return nil, fmt.Errorf("srp: CreateHandshakeRequest: %w: scrambling parameter u is zero", ErrMalformedServerMessage)
	}

	// S = (B - k*g^x)^(a + u*x) mod N
	gx := new(big.Int).Exp(hs.grp.g, x, hs.grp.N)
	kgx := new(big.Int).Mul(hs.grp.k, gx)
	kgx.Mod(kgx, hs.grp.N)
	base := new(big.Int).Sub(hs.B, kgx)
	base.Mod(base, hs.grp.N)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, hs.a)

	hs.premaster = new(big.Int).Exp(base, exp, hs.grp.N)

	hs.state = StateAwaitSM1
	return [][]byte{[]byte("ready")}, nil
}

// CreateProofRequest consumes the server's SM1 acknowledgement and returns
// the client proof frames: identity name and M1 = H(A, B, S), laid out like
// the initiation frames. Advances the state to AwaitSM2.
func (hs *HandshakeSession) CreateProofRequest(serverFrames [][]byte) ([][]byte, error) {
	if hs.state != StateAwaitSM1 {
		return nil, fmt.Errorf("srp: CreateProofRequest: %w (state %s)", ErrInvalidState, hs.state)
	}
	if len(serverFrames) < 2 {
		hs.state = StateFailed
		return nil, fmt.Errorf("srp: CreateProofRequest: %w: expected an SM1 acknowledgement frame", ErrMalformedServerMessage)
	}

	hs.m1 = hs.grp.hashInts(hs.A, hs.B, hs.premaster)

	hs.state = StateAwaitSM2
	return [][]byte{[]byte(hs.identityName), hs.m1.Bytes()}, nil
}

// ProcessProofReply consumes the server's SM2 message carrying its proof
// M2 = H(A, M1, S). If it verifies, the session derives and installs
// Crypto and returns true, transitioning to Established; otherwise it
// transitions to Failed and returns false.
func (hs *HandshakeSession) ProcessProofReply(serverFrames [][]byte) bool {
	if hs.state != StateAwaitSM2 {
		hs.state = StateFailed
		return false
	}
	if len(serverFrames) < 2 {
		hs.state = StateFailed
		return false
	}

	expected := hs.grp.hashInts(hs.A, hs.m1, hs.premaster)
	got := new(big.Int).SetBytes(serverFrames[1])
	if !hmac.Equal(expected.Bytes(), got.Bytes()) {
		hs.state = StateFailed
		return false
	}

	crypto, err := newCryptoFromPremaster(hs.premaster.Bytes())
	if err != nil {
		hs.state = StateFailed
		return false
	}
	hs.crypto.Store(crypto)
	hs.state = StateEstablished
	return true
}

// Fail transitions the session directly to Failed, used by the dispatch
// loop when the server sends an SF*/FF0 phase or an otherwise-unexpected
// message during the handshake.
func (hs *HandshakeSession) Fail() {
	hs.state = StateFailed
}

// derivePrivateKey computes x = H(salt || H(identityName ":" identitySecret)),
// the standard SRP-6a private key derivation.
func (hs *HandshakeSession) derivePrivateKey(salt []byte) *big.Int {
	inner := sha256.New()
	inner.Write([]byte(hs.identityName))
	inner.Write([]byte(":"))
	inner.Write([]byte(hs.identitySecret))
	innerHash := inner.Sum(nil)

	outer := sha256.New()
	outer.Write(salt)
	outer.Write(innerHash)
	return new(big.Int).SetBytes(outer.Sum(nil))
}

// newCryptoFromPremaster derives independent send/receive AEAD keys from
// the SRP premaster secret via HKDF-SHA256, mirroring the teacher's
// shared/protocol/handshake.go deriveKey helper.
func newCryptoFromPremaster(premaster []byte) (*Crypto, error) {
	sendKey, err := hkdfExpand(premaster, hkdfInfoSend)
	if err != nil {
		return nil, err
	}
	recvKey, err := hkdfExpand(premaster, hkdfInfoRecv)
	if err != nil {
		return nil, err
	}
	return newCrypto(sendKey, recvKey)
}

func hkdfExpand(ikm []byte, info string) ([32]byte, error) {
	var out [32]byte
	r := hkdf.New(sha256.New, ikm, nil, []byte(info))
	if _, err := r.Read(out[:]); err != nil {
		return out, fmt.Errorf("srp: hkdf expand: %w", err)
	}
	return out, nil
}
