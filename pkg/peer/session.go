package peer

import (
	"fmt"
	"sync"

	"github.com/pion/logging"

	"github.com/nodelink/p2phandshake/pkg/devp2p"
	"github.com/nodelink/p2phandshake/pkg/frame"
)

// Session is an established, authenticated connection with negotiated
// capabilities.
type Session struct {
	conn        *frame.Conn
	remoteHello *devp2p.Hello
	caps        []devp2p.Cap
	log         logging.LeveledLogger

	closeOnce sync.Once
	closeErr  error
}

// RemoteID returns the peer's authenticated 64-byte public key.
func (s *Session) RemoteID() []byte {
	return s.remoteHello.NodeID
}

// RemoteHello returns the Hello the peer announced.
func (s *Session) RemoteHello() *devp2p.Hello {
	return s.remoteHello
}

// Caps returns the negotiated capabilities, sorted by name then
// version.
func (s *Session) Caps() []devp2p.Cap {
	return s.caps
}

// WriteMessage sends one protocol message over the frame transport.
func (s *Session) WriteMessage(code uint64, payload []byte) error {
	return s.conn.WriteFrame(code, payload)
}

// ReadMessage receives one protocol message. A Disconnect from the
// peer is reported as ErrDisconnected carrying the reason.
func (s *Session) ReadMessage() (uint64, []byte, error) {
	code, payload, err := s.conn.ReadFrame()
	if err != nil {
		return 0, nil, err
	}
	if code == devp2p.DiscMsg {
		reason, perr := devp2p.ParseDisconnect(payload)
		if perr != nil {
			return 0, nil, ErrDisconnected
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrDisconnected, reason)
	}
	return code, payload, nil
}

// Close announces an orderly disconnect to the peer and closes the
// connection.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		// Best effort: the peer may already be gone.
		if err := s.conn.WriteFrame(devp2p.DiscMsg, devp2p.EncodeDisconnect(devp2p.DiscRequested)); err != nil && s.log != nil {
			s.log.Debugf("disconnect notice not sent: %v", err)
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
