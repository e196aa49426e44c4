package srp

import (
	"crypto/sha256"
	"math/big"
)

// group holds the prime-order parameters of the SRP-6a exchange: the safe
// prime N and generator g from the RFC 5054 2048-bit group, plus the
// multiplier k = H(N || PAD(g)) mandated by SRP-6a to prevent a malicious
// server from choosing B to cancel out the verifier term.
//
// There is no SRP/PAKE library in the retrieved example corpus (see
// DESIGN.md); the group constants and modular exponentiation below are the
// textbook RFC 5054 definition, small enough to implement directly against
// stdlib math/big.
type group struct {
	N *big.Int
	g *big.Int
	k *big.Int
}

var rfc5054Group2048 = newGroup(
	"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73",
	"02",
)

func newGroup(nHex, gHex string) *group {
	n, ok := new(big.Int).SetString(nHex, 16)
	if !ok {
		panic("srp: invalid N constant")
	}
	g, ok := new(big.Int).SetString(gHex, 16)
	if !ok {
		panic("srp: invalid g constant")
	}
	h := sha256.New()
	h.Write(padToN(n, n))
	h.Write(padToN(g, n))
	k := new(big.Int).SetBytes(h.Sum(nil))
	return &group{N: n, g: g, k: k}
}

// padToN left-pads v's big-endian bytes to the byte length of N, matching
// the SRP specification's requirement that hash inputs derived from group
// elements be a fixed, N-sized width.
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

// hashInts hashes the N-padded concatenation of a series of big integers,
// used for the SRP scrambling parameter u and the client/server proofs.
func (g *group) hashInts(vs ...*big.Int) *big.Int {
	h := sha256.New()
	for _, v := range vs {
		h.Write(padToN(v, g.N))
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
