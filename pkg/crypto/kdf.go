package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// ConcatKDF derives keying material from a shared secret using the
// NIST SP 800-56 concatenation key derivation function with SHA-256,
// as required by the ECIES construction.
//
// Parameters:
//   - z: shared secret (ECDH output)
//   - s1: optional shared information (can be nil)
//   - kdLen: number of bytes to derive
//
// The derivation is counter-based: hash(counter_be32 || z || s1) for
// counter = 1, 2, ... until kdLen bytes are produced.
func ConcatKDF(z, s1 []byte, kdLen int) []byte {
	out := make([]byte, 0, kdLen+sha256.Size)
	var counter [4]byte
	for i := uint32(1); len(out) < kdLen; i++ {
		binary.BigEndian.PutUint32(counter[:], i)
		h := sha256.New()
		h.Write(counter[:])
		h.Write(z)
		h.Write(s1)
		out = h.Sum(out)
	}
	return out[:kdLen]
}
