// Package peer orchestrates the full connection sequence: encrypted
// handshake, frame transport setup, Hello exchange and capability
// negotiation, producing a Session ready for protocol traffic.
package peer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/logging"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/devp2p"
	"github.com/nodelink/p2phandshake/pkg/frame"
	"github.com/nodelink/p2phandshake/pkg/handshake"
)

// Dial runs the connection sequence as the initiator over an already
// established conn. remotePub is the peer's 64-byte static public
// key. On failure the conn is closed.
func Dial(ctx context.Context, conn net.Conn, remotePub []byte, config Config) (*Session, error) {
	config = config.withDefaults()
	seq := &sequence{ctx: ctx, conn: conn, config: config, log: config.logger("peer")}
	remoteKey, err := crypto.ImportPubkey(remotePub)
	if err != nil {
		return nil, seq.fail(StageHandshake, err)
	}
	return seq.run(func() (*handshake.Secrets, error) {
		return handshake.RunInitiator(conn, config.Identity, remoteKey)
	})
}

// Accept runs the connection sequence as the recipient over an
// already established conn. On failure the conn is closed.
func Accept(ctx context.Context, conn net.Conn, config Config) (*Session, error) {
	config = config.withDefaults()
	seq := &sequence{ctx: ctx, conn: conn, config: config, log: config.logger("peer")}
	return seq.run(func() (*handshake.Secrets, error) {
		return handshake.RunRecipient(conn, config.Identity)
	})
}

type sequence struct {
	ctx    context.Context
	conn   net.Conn
	config Config
	log    logging.LeveledLogger
}

func (s *sequence) run(doHandshake func() (*handshake.Secrets, error)) (*Session, error) {
	deadline := time.Now().Add(s.config.HandshakeTimeout)
	if d, ok := s.ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return nil, s.fail(StageHandshake, err)
	}
	// Cancellation aborts in-flight I/O by expiring the deadline.
	stop := context.AfterFunc(s.ctx, func() {
		s.conn.SetDeadline(time.Now())
	})
	defer stop()

	secrets, err := doHandshake()
	if err != nil {
		return nil, s.fail(StageHandshake, err)
	}
	remoteID := crypto.ExportPubkey(secrets.RemoteStatic)
	if s.log != nil {
		s.log.Debugf("handshake established with %x", remoteID[:8])
	}

	fconn, err := frame.NewConn(s.conn, secrets, frame.Config{LoggerFactory: s.config.LoggerFactory})
	if err != nil {
		return nil, s.fail(StageFrame, err)
	}

	remoteHello, err := s.exchangeHello(fconn)
	if err != nil {
		return nil, s.fail(StageCapabilities, err)
	}
	if !bytes.Equal(remoteHello.NodeID, remoteID) {
		err := fmt.Errorf("%w: hello node id does not match handshake identity", devp2p.ErrMalformedHello)
		return nil, s.fail(StageCapabilities, err)
	}

	caps, err := devp2p.Negotiate(s.config.Capabilities, remoteHello.Caps)
	if err != nil {
		return nil, s.fail(StageCapabilities, err)
	}
	if s.log != nil {
		s.log.Infof("session with %x: caps %v", remoteHello.NodeID[:8], caps)
	}

	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		return nil, s.fail(StageCapabilities, err)
	}
	return &Session{
		conn:        fconn,
		remoteHello: remoteHello,
		caps:        caps,
		log:         s.log,
	}, nil
}

// exchangeHello sends the local Hello and reads the peer's. Sending
// first is safe in both roles: Hello frames cross on the wire.
func (s *sequence) exchangeHello(fconn *frame.Conn) (*devp2p.Hello, error) {
	hello := &devp2p.Hello{
		ProtocolVersion: devp2p.BaseProtocolVersion,
		ClientID:        s.config.ClientID,
		Caps:            s.config.Capabilities,
		ListenPort:      s.config.ListenPort,
		NodeID:          s.config.Identity.PublicKeyBytes(),
	}

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- fconn.WriteFrame(devp2p.HelloMsg, hello.Encode())
	}()

	code, payload, err := fconn.ReadFrame()
	if err != nil {
		<-writeErr
		return nil, err
	}
	if err := <-writeErr; err != nil {
		return nil, err
	}

	switch code {
	case devp2p.HelloMsg:
		return devp2p.ParseHello(payload, s.config.MinProtocolVersion)
	case devp2p.DiscMsg:
		reason, perr := devp2p.ParseDisconnect(payload)
		if perr != nil {
			return nil, fmt.Errorf("%w: before hello", ErrDisconnected)
		}
		return nil, fmt.Errorf("%w: %v", ErrDisconnected, reason)
	default:
		return nil, fmt.Errorf("%w: unexpected message code %d before hello", devp2p.ErrMalformedHello, code)
	}
}

// fail closes the conn and wraps err with the failed stage. Deadline
// expiry maps to ErrHandshakeTimeout unless the context caused it.
func (s *sequence) fail(stage Stage, err error) error {
	s.conn.Close()
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		err = ctxErr
	} else if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		err = fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
	}
	if s.log != nil {
		s.log.Warnf("connection sequence failed at %s: %v", stage, err)
	}
	return &StageError{Stage: stage, Err: err}
}
