// Package crypto provides the cryptographic primitives for the RLPx
// handshake and frame layer: secp256k1 key agreement and recoverable
// signatures, Keccak-256 hashing, the NIST concatenation KDF, AES-CTR
// and the ECIES asymmetric encryption scheme built from them.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// secp256k1 size constants.
const (
	// PrivkeyLength is the private scalar size in bytes.
	PrivkeyLength = 32

	// PubkeyLength is the uncompressed public key size without the
	// format byte (X || Y). This is the devp2p node ID form.
	PubkeyLength = 64

	// SignatureLength is the recoverable signature size (r || s || v).
	SignatureLength = 65
)

// Errors for key handling.
var (
	// ErrEntropyFailure is returned when the system entropy source
	// cannot supply key material. Fatal, never retried.
	ErrEntropyFailure = errors.New("crypto: entropy source unavailable")

	// ErrInvalidPubkey is returned when public key bytes do not
	// describe a point on the secp256k1 curve.
	ErrInvalidPubkey = errors.New("crypto: invalid secp256k1 public key")

	// ErrInvalidSignature is returned when a recoverable signature
	// cannot be verified or its public key recovered.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
)

// KeyPair holds a secp256k1 key pair. It backs both the long-lived
// static identity of a node and the per-handshake ephemeral keys.
type KeyPair struct {
	priv *secp256k1.PrivateKey
}

// GenerateKeyPair generates a fresh key pair using the system entropy
// source. It fails with ErrEntropyFailure when no randomness is
// available.
func GenerateKeyPair() (*KeyPair, error) {
	return GenerateKeyPairFromRand(rand.Reader)
}

// GenerateKeyPairFromRand generates a key pair from the given entropy
// source. The handshake uses it so tests can run deterministically.
func GenerateKeyPairFromRand(rng io.Reader) (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyFailure, err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromBytes restores a key pair from a 32-byte private scalar.
func KeyPairFromBytes(b []byte) (*KeyPair, error) {
	if len(b) != PrivkeyLength {
		return nil, fmt.Errorf("crypto: private key must be %d bytes, got %d", PrivkeyLength, len(b))
	}
	return &KeyPair{priv: secp256k1.PrivKeyFromBytes(b)}, nil
}

// PublicKey returns the public half of the pair.
func (kp *KeyPair) PublicKey() *secp256k1.PublicKey {
	return kp.priv.PubKey()
}

// PublicKeyBytes returns the raw 64-byte public key for embedding in
// handshake and Hello messages.
func (kp *KeyPair) PublicKeyBytes() []byte {
	return ExportPubkey(kp.priv.PubKey())
}

// Zero clears the private scalar. Ephemeral keys must be zeroed as
// soon as the frame secrets have been derived.
func (kp *KeyPair) Zero() {
	kp.priv.Zero()
}

// SharedSecret computes the ECDH shared secret with the peer's public
// key, returning the 32-byte x coordinate of the shared point.
func (kp *KeyPair) SharedSecret(peer *secp256k1.PublicKey) []byte {
	return secp256k1.GenerateSharedSecret(kp.priv, peer)
}

// Sign produces a recoverable signature (r || s || v) over a 32-byte
// digest. The v byte is the recovery id (0 or 1).
func (kp *KeyPair) Sign(digest []byte) ([]byte, error) {
	if len(digest) != HashLength {
		return nil, fmt.Errorf("crypto: digest must be %d bytes, got %d", HashLength, len(digest))
	}
	compact := ecdsa.SignCompact(kp.priv, digest, false)

	// SignCompact places the recovery code first; rotate to r || s || v.
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// RecoverPubkey recovers the public key that produced a recoverable
// signature over digest.
func RecoverPubkey(digest, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	if sig[64] >= 4 {
		return nil, fmt.Errorf("%w: invalid recovery id %d", ErrInvalidSignature, sig[64])
	}

	// RecoverCompact wants the recovery code first.
	compact := make([]byte, SignatureLength)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig)

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pub, nil
}

// ExportPubkey serializes a public key to the raw 64-byte form
// (uncompressed, format byte stripped).
func ExportPubkey(pub *secp256k1.PublicKey) []byte {
	return pub.SerializeUncompressed()[1:]
}

// ImportPubkey parses a raw 64-byte public key.
func ImportPubkey(b []byte) (*secp256k1.PublicKey, error) {
	if len(b) != PubkeyLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidPubkey, PubkeyLength, len(b))
	}
	buf := make([]byte, PubkeyLength+1)
	buf[0] = 0x04
	copy(buf[1:], b)
	pub, err := secp256k1.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	return pub, nil
}
