// Package devp2p implements the base protocol messages exchanged over
// the frame transport: the Hello that advertises identity and
// capabilities, and the Disconnect that ends a session.
package devp2p

import (
	"fmt"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/rlp"
)

const (
	// BaseProtocolVersion is the version of the base protocol this
	// implementation speaks.
	BaseProtocolVersion = 5

	// HelloMsg is the message code of the Hello message.
	HelloMsg = 0x00

	// DiscMsg is the message code of the Disconnect message.
	DiscMsg = 0x01
)

// Cap names one protocol capability and its version.
type Cap struct {
	Name    string
	Version uint64
}

func (c Cap) String() string {
	return fmt.Sprintf("%s/%d", c.Name, c.Version)
}

// Hello is the first message on an established frame connection. It
// announces the sender's identity and the protocols it can speak.
type Hello struct {
	ProtocolVersion uint64
	ClientID        string
	Caps            []Cap
	ListenPort      uint64

	// NodeID is the sender's uncompressed public key without the
	// format prefix.
	NodeID []byte
}

// Encode returns the RLP payload of the Hello.
func (h *Hello) Encode() []byte {
	var caps []byte
	for _, c := range h.Caps {
		var pair []byte
		pair = rlp.AppendString(pair, []byte(c.Name))
		pair = rlp.AppendUint64(pair, c.Version)
		caps = rlp.AppendList(caps, pair)
	}

	var content []byte
	content = rlp.AppendUint64(content, h.ProtocolVersion)
	content = rlp.AppendString(content, []byte(h.ClientID))
	content = rlp.AppendList(content, caps)
	content = rlp.AppendUint64(content, h.ListenPort)
	content = rlp.AppendString(content, h.NodeID)
	return rlp.AppendList(nil, content)
}

// ParseHello decodes a Hello payload. The peer's announced protocol
// version must be at least minVersion.
func ParseHello(payload []byte, minVersion uint64) (*Hello, error) {
	content, rest, err := rlp.SplitList(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHello, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing data after hello", ErrMalformedHello)
	}

	h := new(Hello)
	h.ProtocolVersion, content, err = rlp.SplitUint64(content)
	if err != nil {
		return nil, fmt.Errorf("%w: protocol version: %v", ErrMalformedHello, err)
	}
	clientID, content, err := rlp.SplitString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: client id: %v", ErrMalformedHello, err)
	}
	h.ClientID = string(clientID)

	caps, content, err := rlp.SplitList(content)
	if err != nil {
		return nil, fmt.Errorf("%w: capability list: %v", ErrMalformedHello, err)
	}
	for len(caps) > 0 {
		var pair []byte
		pair, caps, err = rlp.SplitList(caps)
		if err != nil {
			return nil, fmt.Errorf("%w: capability entry: %v", ErrMalformedHello, err)
		}
		name, pair, err := rlp.SplitString(pair)
		if err != nil {
			return nil, fmt.Errorf("%w: capability name: %v", ErrMalformedHello, err)
		}
		version, _, err := rlp.SplitUint64(pair)
		if err != nil {
			return nil, fmt.Errorf("%w: capability version: %v", ErrMalformedHello, err)
		}
		h.Caps = append(h.Caps, Cap{Name: string(name), Version: version})
	}

	h.ListenPort, content, err = rlp.SplitUint64(content)
	if err != nil {
		return nil, fmt.Errorf("%w: listen port: %v", ErrMalformedHello, err)
	}
	h.NodeID, _, err = rlp.SplitString(content)
	if err != nil {
		return nil, fmt.Errorf("%w: node id: %v", ErrMalformedHello, err)
	}
	if len(h.NodeID) != crypto.PubkeyLength {
		return nil, fmt.Errorf("%w: node id has %d bytes, want %d", ErrMalformedHello, len(h.NodeID), crypto.PubkeyLength)
	}

	if h.ProtocolVersion < minVersion {
		return nil, fmt.Errorf("%w: peer announced version %d, minimum is %d", ErrUnsupportedVersion, h.ProtocolVersion, minVersion)
	}
	return h, nil
}
