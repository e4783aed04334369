package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/nodelink/p2phandshake/pkg/enode"
	"github.com/nodelink/p2phandshake/pkg/peer"
)

// DialNode connects to the peer named by a node record and runs the
// initiator side of the connection sequence.
func DialNode(ctx context.Context, node *enode.Node, config peer.Config) (*peer.Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", node.Addr())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", node.Addr(), err)
	}
	return peer.Dial(ctx, conn, node.ID, config)
}
