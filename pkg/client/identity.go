package client

import (
	"crypto/rand"
	"encoding/hex"
)

// Identity is the stable 16-byte opaque identifier minted for a client at
// construction. It is used as the transport-level socket identity and
// tagged on every delivered message.
type Identity [16]byte

func newIdentity() (Identity, error) {
	var id Identity
	if _, err := rand.Read(id[:]); err != nil {
		return id, err
	}
	return id, nil
}

// String returns the identity's hex encoding, used for logging.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}
