// Package enode parses node records, the textual addresses that name
// a peer by public key and network endpoint:
//
//	enode://<128 hex chars>@host:port
//
// The scheme prefix is optional.
package enode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nodelink/p2phandshake/pkg/crypto"
)

const scheme = "enode://"

var (
	// ErrInvalidRecord indicates a record that does not have the
	// id@host:port shape.
	ErrInvalidRecord = errors.New("invalid node record")

	// ErrInvalidNodeID indicates a node ID that is not 64 bytes of
	// hex or not a valid public key.
	ErrInvalidNodeID = errors.New("invalid node id")

	// ErrInvalidEndpoint indicates an unusable host or port.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Node is a parsed node record.
type Node struct {
	// ID is the node's uncompressed public key without the format
	// prefix.
	ID []byte

	Host string
	Port uint16
}

// Parse decodes a node record.
func Parse(record string) (*Node, error) {
	s := strings.TrimPrefix(record, scheme)

	id, endpoint, found := strings.Cut(s, "@")
	if !found {
		return nil, fmt.Errorf("%w: missing @", ErrInvalidRecord)
	}

	if len(id) != 2*crypto.PubkeyLength {
		return nil, fmt.Errorf("%w: %d hex characters, want %d", ErrInvalidNodeID, len(id), 2*crypto.PubkeyLength)
	}
	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNodeID, err)
	}
	if _, err := crypto.ImportPubkey(idBytes); err != nil {
		return nil, fmt.Errorf("%w: not a point on the curve", ErrInvalidNodeID)
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return nil, fmt.Errorf("%w: bad port %q", ErrInvalidEndpoint, portStr)
	}

	return &Node{ID: idBytes, Host: host, Port: uint16(port)}, nil
}

// Addr returns the node's dialable host:port.
func (n *Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(int(n.Port)))
}

func (n *Node) String() string {
	return scheme + hex.EncodeToString(n.ID) + "@" + n.Addr()
}
