package handshake

import (
	"fmt"
	"hash"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/nodelink/p2phandshake/pkg/crypto"
)

// Secrets holds the symmetric material derived from a completed
// handshake: the frame encryption and MAC-whitening keys plus the two
// rolling MAC states, already seeded with the handshake transcript.
// The frame transport takes ownership; the secrets must never be
// logged or persisted.
type Secrets struct {
	AES, MAC              []byte
	EgressMAC, IngressMAC hash.Hash

	// RemoteStatic identifies the authenticated peer.
	RemoteStatic *secp256k1.PublicKey
}

// Destroy zeroizes the key material. The MAC states cannot be
// rolled back and are simply dropped.
func (s *Secrets) Destroy() {
	crypto.Zeroize(s.AES)
	crypto.Zeroize(s.MAC)
	s.EgressMAC, s.IngressMAC = nil, nil
}

// Secrets derives the frame secrets and moves the handshake to
// Established. Valid once the final packet of the role's sequence has
// been processed. The ephemeral private key is destroyed here; a
// Handshake cannot be reused.
func (h *Handshake) Secrets() (*Secrets, error) {
	switch {
	case h.role == RoleInitiator && h.state == StateAckReceived:
	case h.role == RoleRecipient && h.state == StateAckSent:
	default:
		return nil, fmt.Errorf("%w: Secrets in %s/%s", ErrInvalidState, h.role, h.state)
	}

	ecdhe := h.ephemeral.SharedSecret(h.remoteEphemeral)

	// Transcript-bound derivation chain.
	shared := crypto.Keccak256(ecdhe, crypto.Keccak256(h.respNonce, h.initNonce))
	aes := crypto.Keccak256(ecdhe, shared)
	mac := crypto.Keccak256(ecdhe, aes)

	s := &Secrets{
		AES:          aes,
		MAC:          mac,
		RemoteStatic: h.remoteStatic,
	}

	// Each direction's MAC state is seeded with the MAC secret
	// whitened by the peer's nonce, then the packet that direction
	// authenticated. Both sides compute the same pair and assign by
	// role.
	mac1 := crypto.NewKeccak256()
	mac1.Write(crypto.XOR(mac, h.respNonce))
	mac1.Write(h.authPacket)
	mac2 := crypto.NewKeccak256()
	mac2.Write(crypto.XOR(mac, h.initNonce))
	mac2.Write(h.ackPacket)
	if h.role == RoleInitiator {
		s.EgressMAC, s.IngressMAC = mac1, mac2
	} else {
		s.EgressMAC, s.IngressMAC = mac2, mac1
	}

	// The ephemeral key pair and intermediate secrets are gone for
	// good: a retry must start over with fresh material.
	crypto.Zeroize(ecdhe)
	crypto.Zeroize(shared)
	h.ephemeral.Zero()
	h.state = StateEstablished
	return s, nil
}
