// Package integration exercises the full stack over real TCP
// loopback connections: handshake, frame transport, Hello exchange
// and capability negotiation through the public API only.
package integration

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/devp2p"
	"github.com/nodelink/p2phandshake/pkg/enode"
	"github.com/nodelink/p2phandshake/pkg/peer"
	"github.com/nodelink/p2phandshake/pkg/transport"
)

func newKey(t *testing.T) *crypto.KeyPair {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return key
}

func startServer(t *testing.T, key *crypto.KeyPair, caps []devp2p.Cap) (*transport.Server, *enode.Node, chan *peer.Session) {
	t.Helper()

	sessions := make(chan *peer.Session, 4)
	server, err := transport.NewServer(transport.ServerConfig{
		ListenAddr: "127.0.0.1:0",
		Peer: peer.Config{
			Identity:     key,
			ClientID:     "integration-server/v1",
			Capabilities: caps,
		},
		SessionHandler: func(s *peer.Session) { sessions <- s },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	record := "enode://" + hex.EncodeToString(key.PublicKeyBytes()) + "@" + server.LocalAddr().String()
	node, err := enode.Parse(record)
	if err != nil {
		t.Fatalf("Parse(%q): %v", record, err)
	}
	return server, node, sessions
}

func TestSessionOverTCP(t *testing.T) {
	lim := test.TimeOut(30 * time.Second)
	defer lim.Stop()

	serverKey := newKey(t)
	clientKey := newKey(t)
	_, node, sessions := startServer(t, serverKey, []devp2p.Cap{
		{Name: "eth", Version: 67},
		{Name: "les", Version: 3},
	})

	client, err := transport.DialNode(context.Background(), node, peer.Config{
		Identity:     clientKey,
		ClientID:     "integration-client/v1",
		Capabilities: []devp2p.Cap{{Name: "eth", Version: 66}, {Name: "eth", Version: 67}},
	})
	if err != nil {
		t.Fatalf("DialNode: %v", err)
	}
	defer client.Close()
	serverSession := <-sessions
	defer serverSession.Close()

	want := []devp2p.Cap{{Name: "eth", Version: 67}}
	if len(client.Caps()) != 1 || client.Caps()[0] != want[0] {
		t.Fatalf("client caps = %v, want %v", client.Caps(), want)
	}
	if len(serverSession.Caps()) != 1 || serverSession.Caps()[0] != want[0] {
		t.Fatalf("server caps = %v, want %v", serverSession.Caps(), want)
	}
	if !bytes.Equal(client.RemoteID(), serverKey.PublicKeyBytes()) {
		t.Error("client authenticated the wrong peer")
	}
	if !bytes.Equal(serverSession.RemoteID(), clientKey.PublicKeyBytes()) {
		t.Error("server authenticated the wrong peer")
	}

	// Traffic in both directions over the same session.
	if err := client.WriteMessage(0x10, []byte("request")); err != nil {
		t.Fatal(err)
	}
	code, payload, err := serverSession.ReadMessage()
	if err != nil || code != 0x10 || string(payload) != "request" {
		t.Fatalf("server got code=%d payload=%q err=%v", code, payload, err)
	}
	if err := serverSession.WriteMessage(0x11, []byte("response")); err != nil {
		t.Fatal(err)
	}
	code, payload, err = client.ReadMessage()
	if err != nil || code != 0x11 || string(payload) != "response" {
		t.Fatalf("client got code=%d payload=%q err=%v", code, payload, err)
	}

	// Orderly shutdown: the server observes the client's Disconnect.
	go client.Close()
	if _, _, err := serverSession.ReadMessage(); !errors.Is(err, peer.ErrDisconnected) {
		t.Fatalf("ReadMessage() after close: %v, want ErrDisconnected", err)
	}
}

func TestDialWithWrongServerKey(t *testing.T) {
	lim := test.TimeOut(30 * time.Second)
	defer lim.Stop()

	caps := []devp2p.Cap{{Name: "eth", Version: 67}}
	_, node, _ := startServer(t, newKey(t), caps)

	// A record carrying the wrong public key for the endpoint.
	imposter := newKey(t)
	badNode, err := enode.Parse("enode://" + hex.EncodeToString(imposter.PublicKeyBytes()) + "@" + node.Addr())
	if err != nil {
		t.Fatal(err)
	}

	_, err = transport.DialNode(context.Background(), badNode, peer.Config{
		Identity:         newKey(t),
		Capabilities:     caps,
		HandshakeTimeout: 2 * time.Second,
	})
	if err == nil {
		t.Fatal("DialNode succeeded against a server with a different key")
	}
}

func TestConcurrentClients(t *testing.T) {
	lim := test.TimeOut(30 * time.Second)
	defer lim.Stop()

	caps := []devp2p.Cap{{Name: "eth", Version: 67}}
	_, node, sessions := startServer(t, newKey(t), caps)

	const clients = 4
	keys := make([]*crypto.KeyPair, clients)
	for i := range keys {
		keys[i] = newKey(t)
	}
	errCh := make(chan error, clients)
	for i := 0; i < clients; i++ {
		key := keys[i]
		go func() {
			session, err := transport.DialNode(context.Background(), node, peer.Config{
				Identity:     key,
				Capabilities: caps,
			})
			if err != nil {
				errCh <- err
				return
			}
			errCh <- session.Close()
		}()
	}
	for i := 0; i < clients; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
	}
	for i := 0; i < clients; i++ {
		select {
		case s := <-sessions:
			s.Close()
		case <-time.After(5 * time.Second):
			t.Fatalf("server established %d sessions, want %d", i, clients)
		}
	}
}
