package srp

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrAuthenticationFailed indicates a frame's authentication tag did not
// verify; the frame is either corrupt, replayed with a reused nonce, or
// not ours.
var ErrAuthenticationFailed = errors.New("srp: authentication failed")

// ErrInvalidCiphertext indicates a frame is too short to contain a nonce
// and authentication tag.
var ErrInvalidCiphertext = errors.New("srp: invalid ciphertext")

const (
	nonceSize   = chacha20poly1305.NonceSize
	tagSize     = 16
	overheadLen = nonceSize + tagSize
)

// directionCipher is one direction's AEAD instance with its own nonce
// counter and per-instance random prefix, mirroring the teacher's
// shared/crypto/symmetric.go FrameEncryptor: a 64-bit monotonic counter
// composed with a random prefix guarantees nonce uniqueness across the
// life of the session without requiring any coordination between frames.
type directionCipher struct {
	aead    cipher.AEAD
	counter atomic.Uint64
	prefix  [4]byte
}

func newDirectionCipher(key [32]byte) (*directionCipher, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	dc := &directionCipher{aead: aead}
	if _, err := rand.Read(dc.prefix[:]); err != nil {
		return nil, err
	}
	return dc, nil
}

func (dc *directionCipher) nextNonce() [nonceSize]byte {
	var nonce [nonceSize]byte
	count := dc.counter.Add(1) - 1
	binary.LittleEndian.PutUint64(nonce[0:8], count)
	copy(nonce[8:12], dc.prefix[:])
	return nonce
}

// Crypto is the per-session authenticated symmetric channel installed once
// the handshake completes. Encrypt and Decrypt operate on one opaque
// application frame at a time; heartbeats and handshake-control frames
// never pass through it (see pkg/wire and pkg/client's dispatch loop).
type Crypto struct {
	send *directionCipher
	recv *directionCipher
}

func newCrypto(sendKey, recvKey [32]byte) (*Crypto, error) {
	send, err := newDirectionCipher(sendKey)
	if err != nil {
		return nil, err
	}
	recv, err := newDirectionCipher(recvKey)
	if err != nil {
		return nil, err
	}
	return &Crypto{send: send, recv: recv}, nil
}

// Encrypt authenticates and encrypts a single frame, returning
// [nonce(12)][ciphertext][tag(16)].
func (c *Crypto) Encrypt(plaintext []byte) []byte {
	nonce := c.send.nextNonce()
	out := make([]byte, 0, nonceSize+len(plaintext)+tagSize)
	out = append(out, nonce[:]...)
	return c.send.aead.Seal(out, nonce[:], plaintext, nil)
}

// Decrypt verifies and decrypts a single frame previously produced by the
// peer's Encrypt. It returns ErrInvalidCiphertext if the frame is too
// short to contain a nonce and tag, or ErrAuthenticationFailed if the tag
// does not verify.
func (c *Crypto) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < overheadLen {
		return nil, ErrInvalidCiphertext
	}
	nonce := frame[:nonceSize]
	ciphertext := frame[nonceSize:]
	plaintext, err := c.recv.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
