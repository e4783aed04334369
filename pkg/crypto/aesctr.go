// AES-CTR helpers shared by the ECIES scheme (AES-128, random IV) and
// the frame layer (AES-256, zero IV over an ephemeral key).

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// AESBlockSize is the AES block size in bytes. Frame bodies are
// padded to this granularity.
const AESBlockSize = aes.BlockSize

// NewCTRStream creates an AES-CTR keystream for the given key and IV.
// The key must be 16, 24 or 32 bytes; the IV must be one block.
func NewCTRStream(key, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}

// NewAESBlock creates a raw AES block cipher. The frame layer uses
// one keyed with the MAC secret to whiten rolling MAC updates.
func NewAESBlock(key []byte) (cipher.Block, error) {
	return aes.NewCipher(key)
}

// AESCTRXOR encrypts or decrypts data with AES-CTR (the operations
// are identical). The result is a fresh slice of the same length.
func AESCTRXOR(key, iv, data []byte) ([]byte, error) {
	stream, err := NewCTRStream(key, iv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}
