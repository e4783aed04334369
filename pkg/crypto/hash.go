package crypto

import (
	"hash"

	"golang.org/x/crypto/sha3"
)

// HashLength is the Keccak-256 output length in bytes.
const HashLength = 32

// Keccak256 computes the legacy Keccak-256 hash over the
// concatenation of the given byte slices. This is the pre-NIST padding
// variant used throughout the devp2p wire protocol.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// NewKeccak256 returns a fresh legacy Keccak-256 state. The frame
// layer keeps two of these as its rolling ingress/egress MAC states.
func NewKeccak256() hash.Hash {
	return sha3.NewLegacyKeccak256()
}
