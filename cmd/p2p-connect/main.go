// Command p2p-connect dials a node record, runs the encrypted
// handshake and capability negotiation, prints the result and
// disconnects.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/cobra"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/devp2p"
	"github.com/nodelink/p2phandshake/pkg/enode"
	"github.com/nodelink/p2phandshake/pkg/peer"
)

const clientID = "p2p-connect/v1.0.0"

var defaultCaps = []devp2p.Cap{
	{Name: "eth", Version: 66},
	{Name: "eth", Version: 67},
	{Name: "eth", Version: 68},
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		timeout time.Duration
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "p2p-connect <node-record>",
		Short: "Connect to a peer and negotiate capabilities",
		Long: `Dials the peer named by a node record of the form
enode://<128 hex chars>@host:port, performs the encrypted handshake,
exchanges Hello messages and prints the negotiated capabilities.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return connect(args[0], timeout, verbose)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "handshake timeout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func connect(record string, timeout time.Duration, verbose bool) error {
	node, err := enode.Parse(record)
	if err != nil {
		return fmt.Errorf("parsing node record: %w", err)
	}

	identity, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	if verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	}
	log := loggerFactory.NewLogger("p2p-connect")

	log.Infof("dialing %s", node.Addr())
	conn, err := net.DialTimeout("tcp", node.Addr(), timeout)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", node.Addr(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	session, err := peer.Dial(ctx, conn, node.ID, peer.Config{
		Identity:         identity,
		ClientID:         clientID,
		Capabilities:     defaultCaps,
		HandshakeTimeout: timeout,
		LoggerFactory:    loggerFactory,
	})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", node.Addr(), err)
	}
	defer session.Close()

	fmt.Printf("connected to %x\n", session.RemoteID())
	fmt.Printf("client: %s\n", session.RemoteHello().ClientID)
	for _, c := range session.Caps() {
		fmt.Printf("capability: %s\n", c)
	}
	return nil
}
