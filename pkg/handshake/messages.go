package handshake

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/rlp"
)

// Wire constants for the handshake messages.
const (
	// NonceLength is the per-side random nonce size.
	NonceLength = 32

	// Version is the handshake protocol version carried in the auth
	// and ack messages.
	Version = 4

	// prefixLength is the size prefix before each sealed packet.
	prefixLength = 2

	// minPadLength/maxPadLength bound the random padding appended to
	// each plaintext before sealing, so packet sizes do not reveal
	// message boundaries.
	minPadLength = 100
	maxPadLength = 200
)

// authMsg is the initiator's opening message: a recoverable signature
// over static-shared-secret XOR nonce (made with the ephemeral key),
// the initiator's static public key and its nonce.
type authMsg struct {
	Signature    [crypto.SignatureLength]byte
	InitiatorPub [crypto.PubkeyLength]byte
	Nonce        [NonceLength]byte
	Version      uint64
}

func (m *authMsg) encode() []byte {
	var content []byte
	content = rlp.AppendString(content, m.Signature[:])
	content = rlp.AppendString(content, m.InitiatorPub[:])
	content = rlp.AppendString(content, m.Nonce[:])
	content = rlp.AppendUint64(content, m.Version)
	return rlp.AppendList(nil, content)
}

func decodeAuthMsg(b []byte) (*authMsg, error) {
	content, _, err := rlp.SplitList(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	m := new(authMsg)
	if content, err = readFixed(m.Signature[:], content); err != nil {
		return nil, err
	}
	if content, err = readFixed(m.InitiatorPub[:], content); err != nil {
		return nil, err
	}
	if content, err = readFixed(m.Nonce[:], content); err != nil {
		return nil, err
	}
	if m.Version, _, err = rlp.SplitUint64(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	// Any further list elements are ignored for forward
	// compatibility.
	return m, nil
}

// ackMsg is the recipient's reply: its ephemeral public key and
// nonce.
type ackMsg struct {
	EphemeralPub [crypto.PubkeyLength]byte
	Nonce        [NonceLength]byte
	Version      uint64
}

func (m *ackMsg) encode() []byte {
	var content []byte
	content = rlp.AppendString(content, m.EphemeralPub[:])
	content = rlp.AppendString(content, m.Nonce[:])
	content = rlp.AppendUint64(content, m.Version)
	return rlp.AppendList(nil, content)
}

func decodeAckMsg(b []byte) (*ackMsg, error) {
	content, _, err := rlp.SplitList(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	m := new(ackMsg)
	if content, err = readFixed(m.EphemeralPub[:], content); err != nil {
		return nil, err
	}
	if content, err = readFixed(m.Nonce[:], content); err != nil {
		return nil, err
	}
	if m.Version, _, err = rlp.SplitUint64(content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	return m, nil
}

// readFixed consumes one string element of exactly len(dst) bytes.
func readFixed(dst, content []byte) ([]byte, error) {
	s, rest, err := rlp.SplitString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	if len(s) != len(dst) {
		return nil, fmt.Errorf("%w: field size %d, want %d", ErrMalformedHandshake, len(s), len(dst))
	}
	copy(dst, s)
	return rest, nil
}

// ReadPacket reads one size-prefixed handshake packet from r. The
// announced size must cover at least the sealing overhead; anything
// smaller is rejected before any cryptographic work.
func ReadPacket(r io.Reader) ([]byte, error) {
	packet := make([]byte, prefixLength)
	if _, err := io.ReadFull(r, packet); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint16(packet)
	if int(size) < crypto.ECIESOverhead {
		return nil, fmt.Errorf("%w: announced size %d below sealing overhead", ErrMalformedHandshake, size)
	}
	packet = append(packet, make([]byte, size)...)
	if _, err := io.ReadFull(r, packet[prefixLength:]); err != nil {
		return nil, err
	}
	return packet, nil
}
