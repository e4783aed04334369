package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// HMACSHA256 computes the HMAC-SHA256 of the concatenated messages
// using the given key. ECIES uses it as the message authentication
// tag over the symmetric ciphertext.
func HMACSHA256(key []byte, messages ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, m := range messages {
		h.Write(m)
	}
	return h.Sum(nil)
}

// NewHMACSHA256 returns a new hash.Hash computing HMAC-SHA256
// incrementally.
func NewHMACSHA256(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

// HMACEqual compares two MACs in constant time.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
