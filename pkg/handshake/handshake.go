package handshake

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/nodelink/p2phandshake/pkg/crypto"
)

// Handshake drives one side of the encrypted handshake. A Handshake
// is single-use: it walks its role's states exactly once and the
// ephemeral key material is destroyed when the secrets are derived.
//
// Initiator sequence:
//  1. MakeAuth() → send packet
//  2. HandleAck(packet received)
//  3. Secrets()
//
// Recipient sequence:
//  1. HandleAuth(packet received)
//  2. MakeAck() → send packet
//  3. Secrets()
type Handshake struct {
	role  Role
	state State

	static       *crypto.KeyPair
	remoteStatic *secp256k1.PublicKey

	initNonce, respNonce []byte
	ephemeral            *crypto.KeyPair
	remoteEphemeral      *secp256k1.PublicKey

	// Raw packets, kept for transcript binding in the secrets
	// derivation.
	authPacket, ackPacket []byte

	// Random source (injectable for testing).
	rand io.Reader
}

// NewInitiator creates the dialing side of a handshake. remote is the
// recipient's static public key.
func NewInitiator(static *crypto.KeyPair, remote *secp256k1.PublicKey) *Handshake {
	return &Handshake{
		role:         RoleInitiator,
		state:        StateIdle,
		static:       static,
		remoteStatic: remote,
		rand:         rand.Reader,
	}
}

// NewRecipient creates the listening side of a handshake.
func NewRecipient(static *crypto.KeyPair) *Handshake {
	return &Handshake{
		role:   RoleRecipient,
		state:  StateIdle,
		static: static,
		rand:   rand.Reader,
	}
}

// State returns the current handshake state.
func (h *Handshake) State() State {
	return h.state
}

// RemoteStatic returns the peer's static public key. For the
// recipient it is only known after HandleAuth.
func (h *Handshake) RemoteStatic() *secp256k1.PublicKey {
	return h.remoteStatic
}

// MakeAuth builds and seals the auth packet. Initiator only,
// Idle → AuthSent.
func (h *Handshake) MakeAuth() ([]byte, error) {
	if h.role != RoleInitiator || h.state != StateIdle {
		return nil, fmt.Errorf("%w: MakeAuth in %s/%s", ErrInvalidState, h.role, h.state)
	}

	var err error
	if h.initNonce, err = h.makeNonce(); err != nil {
		return nil, err
	}
	if h.ephemeral, err = crypto.GenerateKeyPairFromRand(h.rand); err != nil {
		return nil, err
	}

	// Sign static-shared-secret XOR nonce with the ephemeral key so
	// the recipient can recover our ephemeral public key.
	token := h.static.SharedSecret(h.remoteStatic)
	sig, err := h.ephemeral.Sign(crypto.XOR(token, h.initNonce))
	if err != nil {
		return nil, err
	}

	msg := new(authMsg)
	copy(msg.Signature[:], sig)
	copy(msg.InitiatorPub[:], h.static.PublicKeyBytes())
	copy(msg.Nonce[:], h.initNonce)
	msg.Version = Version

	packet, err := h.seal(msg.encode(), h.remoteStatic)
	if err != nil {
		return nil, err
	}
	h.authPacket = packet
	h.state = StateAuthSent
	return packet, nil
}

// HandleAuth opens and validates an auth packet. Recipient only,
// Idle → AuthReceived.
func (h *Handshake) HandleAuth(packet []byte) error {
	if h.role != RoleRecipient || h.state != StateIdle {
		return fmt.Errorf("%w: HandleAuth in %s/%s", ErrInvalidState, h.role, h.state)
	}

	plain, err := h.open(packet)
	if err != nil {
		return err
	}
	msg, err := decodeAuthMsg(plain)
	if err != nil {
		return err
	}

	remote, err := crypto.ImportPubkey(msg.InitiatorPub[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	h.remoteStatic = remote
	h.initNonce = append([]byte(nil), msg.Nonce[:]...)

	// Recover the initiator's ephemeral public key from the
	// signature over static-shared-secret XOR nonce.
	token := h.static.SharedSecret(h.remoteStatic)
	remoteEph, err := crypto.RecoverPubkey(crypto.XOR(token, h.initNonce), msg.Signature[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHandshakeFailure, err)
	}
	h.remoteEphemeral = remoteEph

	h.authPacket = append([]byte(nil), packet...)
	h.state = StateAuthReceived
	return nil
}

// MakeAck builds and seals the ack packet. Recipient only,
// AuthReceived → AckSent.
func (h *Handshake) MakeAck() ([]byte, error) {
	if h.role != RoleRecipient || h.state != StateAuthReceived {
		return nil, fmt.Errorf("%w: MakeAck in %s/%s", ErrInvalidState, h.role, h.state)
	}

	var err error
	if h.respNonce, err = h.makeNonce(); err != nil {
		return nil, err
	}
	if h.ephemeral, err = crypto.GenerateKeyPairFromRand(h.rand); err != nil {
		return nil, err
	}

	msg := new(ackMsg)
	copy(msg.EphemeralPub[:], h.ephemeral.PublicKeyBytes())
	copy(msg.Nonce[:], h.respNonce)
	msg.Version = Version

	packet, err := h.seal(msg.encode(), h.remoteStatic)
	if err != nil {
		return nil, err
	}
	h.ackPacket = packet
	h.state = StateAckSent
	return packet, nil
}

// HandleAck opens and validates the ack packet. Initiator only,
// AuthSent → AckReceived.
func (h *Handshake) HandleAck(packet []byte) error {
	if h.role != RoleInitiator || h.state != StateAuthSent {
		return fmt.Errorf("%w: HandleAck in %s/%s", ErrInvalidState, h.role, h.state)
	}

	plain, err := h.open(packet)
	if err != nil {
		return err
	}
	msg, err := decodeAckMsg(plain)
	if err != nil {
		return err
	}

	remoteEph, err := crypto.ImportPubkey(msg.EphemeralPub[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	h.remoteEphemeral = remoteEph
	h.respNonce = append([]byte(nil), msg.Nonce[:]...)

	h.ackPacket = append([]byte(nil), packet...)
	h.state = StateAckReceived
	return nil
}

// seal encrypts a handshake plaintext to the given key: random
// padding, a 2-byte big-endian size prefix and an ECIES envelope with
// the prefix as shared authenticated data.
func (h *Handshake) seal(plain []byte, to *secp256k1.PublicKey) ([]byte, error) {
	var padLen [1]byte
	if _, err := io.ReadFull(h.rand, padLen[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrEntropyFailure, err)
	}
	pad := make([]byte, minPadLength+int(padLen[0])%(maxPadLength-minPadLength+1))
	if _, err := io.ReadFull(h.rand, pad); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrEntropyFailure, err)
	}
	buf := append(plain, pad...)

	prefix := make([]byte, prefixLength)
	binary.BigEndian.PutUint16(prefix, uint16(len(buf)+crypto.ECIESOverhead))

	ct, err := crypto.ECIESEncrypt(h.rand, to, buf, nil, prefix)
	if err != nil {
		return nil, err
	}
	return append(prefix, ct...), nil
}

// open reverses seal using the local static key. Structural problems
// report ErrMalformedHandshake; an authentication failure reports
// ErrHandshakeFailure.
func (h *Handshake) open(packet []byte) ([]byte, error) {
	if len(packet) < prefixLength {
		return nil, fmt.Errorf("%w: packet shorter than size prefix", ErrMalformedHandshake)
	}
	size := binary.BigEndian.Uint16(packet)
	if int(size) != len(packet)-prefixLength {
		return nil, fmt.Errorf("%w: announced size %d, packet body %d", ErrMalformedHandshake, size, len(packet)-prefixLength)
	}
	if int(size) < crypto.ECIESOverhead {
		return nil, fmt.Errorf("%w: announced size %d below sealing overhead", ErrMalformedHandshake, size)
	}

	plain, err := crypto.ECIESDecrypt(h.static, packet[prefixLength:], nil, packet[:prefixLength])
	if err != nil {
		if errors.Is(err, crypto.ErrECIESMessageTooShort) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailure, err)
	}
	return plain, nil
}

func (h *Handshake) makeNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(h.rand, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", crypto.ErrEntropyFailure, err)
	}
	return nonce, nil
}

// RunInitiator performs the complete initiator handshake over conn:
// send auth, read ack, derive secrets.
func RunInitiator(conn io.ReadWriter, static *crypto.KeyPair, remote *secp256k1.PublicKey) (*Secrets, error) {
	h := NewInitiator(static, remote)
	auth, err := h.MakeAuth()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(auth); err != nil {
		return nil, err
	}
	ack, err := ReadPacket(conn)
	if err != nil {
		return nil, err
	}
	if err := h.HandleAck(ack); err != nil {
		return nil, err
	}
	return h.Secrets()
}

// RunRecipient performs the complete recipient handshake over conn:
// read auth, send ack, derive secrets.
func RunRecipient(conn io.ReadWriter, static *crypto.KeyPair) (*Secrets, error) {
	h := NewRecipient(static)
	auth, err := ReadPacket(conn)
	if err != nil {
		return nil, err
	}
	if err := h.HandleAuth(auth); err != nil {
		return nil, err
	}
	ack, err := h.MakeAck()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(ack); err != nil {
		return nil, err
	}
	return h.Secrets()
}
