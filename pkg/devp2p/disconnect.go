package devp2p

import (
	"fmt"

	"github.com/nodelink/p2phandshake/pkg/rlp"
)

// DisconnectReason explains why a peer ends a session.
type DisconnectReason uint64

const (
	DiscRequested DisconnectReason = iota
	DiscNetworkError
	DiscProtocolError
	DiscUselessPeer
	DiscTooManyPeers
	DiscAlreadyConnected
	DiscIncompatibleVersion
	DiscInvalidIdentity
	DiscQuitting
	DiscUnexpectedIdentity
	DiscSelfConnect
	DiscReadTimeout
	DiscSubprotocolError DisconnectReason = 0x10
)

func (r DisconnectReason) String() string {
	switch r {
	case DiscRequested:
		return "disconnect requested"
	case DiscNetworkError:
		return "network error"
	case DiscProtocolError:
		return "breach of protocol"
	case DiscUselessPeer:
		return "useless peer"
	case DiscTooManyPeers:
		return "too many peers"
	case DiscAlreadyConnected:
		return "already connected"
	case DiscIncompatibleVersion:
		return "incompatible protocol version"
	case DiscInvalidIdentity:
		return "invalid node identity"
	case DiscQuitting:
		return "client quitting"
	case DiscUnexpectedIdentity:
		return "unexpected identity"
	case DiscSelfConnect:
		return "connected to self"
	case DiscReadTimeout:
		return "read timeout"
	case DiscSubprotocolError:
		return "subprotocol error"
	default:
		return fmt.Sprintf("unknown reason %d", uint64(r))
	}
}

// EncodeDisconnect returns the RLP payload of a Disconnect message:
// a one-element list holding the reason.
func EncodeDisconnect(reason DisconnectReason) []byte {
	content := rlp.AppendUint64(nil, uint64(reason))
	return rlp.AppendList(nil, content)
}

// ParseDisconnect decodes a Disconnect payload. Some implementations
// send the reason as a bare integer rather than a list; both forms
// are accepted.
func ParseDisconnect(payload []byte) (DisconnectReason, error) {
	content, _, err := rlp.SplitList(payload)
	if err != nil {
		content = payload
	}
	reason, _, err := rlp.SplitUint64(content)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedDisconnect, err)
	}
	return DisconnectReason(reason), nil
}
