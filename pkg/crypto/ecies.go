// ECIES asymmetric encryption over secp256k1, as used to seal the
// handshake auth and ack messages to the peer's static key.
//
// The construction follows the Ethereum variant of SEC 1 / IEEE
// 1363a: ECDH with a fresh ephemeral key, the SP 800-56 concatenation
// KDF with SHA-256, AES-128-CTR for the symmetric layer and
// HMAC-SHA256 for the tag.

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ECIES layout constants.
const (
	// ECIESKeyLength is the symmetric (AES-128) key size.
	ECIESKeyLength = 16

	// ECIESTagLength is the HMAC-SHA256 tag size.
	ECIESTagLength = sha256.Size

	// ECIESOverhead is the fixed ciphertext expansion: the ephemeral
	// public key (with format byte), the CTR IV and the tag.
	ECIESOverhead = PubkeyLength + 1 + AESBlockSize + ECIESTagLength
)

// Errors for ECIES operations.
var (
	// ErrECIESInvalidMessage is returned when a ciphertext fails
	// authentication or cannot be decrypted.
	ErrECIESInvalidMessage = errors.New("crypto: invalid ECIES message")

	// ErrECIESMessageTooShort is returned when a ciphertext is
	// smaller than the fixed overhead.
	ErrECIESMessageTooShort = errors.New("crypto: ECIES message shorter than overhead")
)

// ECIESEncrypt encrypts m to the holder of pub. s1 feeds the KDF and
// s2 the authentication tag; either may be nil. The handshake passes
// its 2-byte size prefix as s2 so the prefix is tamper-protected.
func ECIESEncrypt(rng io.Reader, pub *secp256k1.PublicKey, m, s1, s2 []byte) ([]byte, error) {
	if rng == nil {
		rng = rand.Reader
	}

	eph, err := GenerateKeyPairFromRand(rng)
	if err != nil {
		return nil, err
	}
	defer eph.Zero()

	ke, km := eciesDeriveKeys(eph.SharedSecret(pub), s1)

	iv := make([]byte, AESBlockSize)
	if _, err := io.ReadFull(rng, iv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyFailure, err)
	}
	ct, err := AESCTRXOR(ke, iv, m)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, ECIESOverhead+len(m))
	out = append(out, eph.PublicKey().SerializeUncompressed()...)
	out = append(out, iv...)
	out = append(out, ct...)
	out = append(out, HMACSHA256(km, iv, ct, s2)...)
	return out, nil
}

// ECIESDecrypt decrypts a ciphertext produced by ECIESEncrypt using
// the recipient's private key. s1 and s2 must match the values used
// during encryption or authentication fails.
func ECIESDecrypt(kp *KeyPair, c, s1, s2 []byte) ([]byte, error) {
	if len(c) < ECIESOverhead {
		return nil, ErrECIESMessageTooShort
	}

	ephPub, err := secp256k1.ParsePubKey(c[:PubkeyLength+1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrECIESInvalidMessage, err)
	}

	iv := c[PubkeyLength+1 : PubkeyLength+1+AESBlockSize]
	ct := c[PubkeyLength+1+AESBlockSize : len(c)-ECIESTagLength]
	tag := c[len(c)-ECIESTagLength:]

	ke, km := eciesDeriveKeys(kp.SharedSecret(ephPub), s1)
	if !HMACEqual(tag, HMACSHA256(km, iv, ct, s2)) {
		return nil, ErrECIESInvalidMessage
	}
	return AESCTRXOR(ke, iv, ct)
}

// eciesDeriveKeys splits the KDF output into the encryption key and
// the hashed MAC key.
func eciesDeriveKeys(z, s1 []byte) (ke, km []byte) {
	k := ConcatKDF(z, s1, 2*ECIESKeyLength)
	kmHash := sha256.Sum256(k[ECIESKeyLength:])
	return k[:ECIESKeyLength], kmHash[:]
}
