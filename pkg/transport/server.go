// Package transport runs the connection sequence over TCP: a Server
// that accepts inbound peers and a dialer that connects to a node
// record.
package transport

import (
	"context"
	"net"
	"sync"

	"github.com/pion/logging"

	"github.com/nodelink/p2phandshake/pkg/peer"
)

// SessionHandler is called with each successfully established
// session. The handler owns the session and must close it.
type SessionHandler func(*peer.Session)

// Server accepts TCP connections and runs the recipient side of the
// connection sequence on each.
type Server struct {
	listener net.Listener
	config   peer.Config
	handler  SessionHandler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	mu      sync.Mutex
	started bool
	closed  bool
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Listener is an optional pre-existing listener. If nil, a new
	// one is created on ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":30303").
	// Ignored if Listener is provided; empty means an ephemeral port.
	ListenAddr string

	// Peer configures the connection sequence run on each accepted
	// conn. Identity is required.
	Peer peer.Config

	// SessionHandler is called for each established session.
	// Required.
	SessionHandler SessionHandler
}

// NewServer creates a Server with the given configuration.
func NewServer(config ServerConfig) (*Server, error) {
	if config.SessionHandler == nil {
		return nil, ErrNoHandler
	}

	s := &Server{
		listener: config.Listener,
		config:   config.Peer,
		handler:  config.SessionHandler,
		closeCh:  make(chan struct{}),
	}
	if config.Peer.LoggerFactory != nil {
		s.log = config.Peer.LoggerFactory.NewLogger("transport")
	}

	if s.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.listener = listener
	}
	return s, nil
}

// Start begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("listening on %s", s.listener.Addr())
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight sequences.
// Established sessions handed to the handler are not touched.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	s.listener.Close()
	s.wg.Wait()
	return nil
}

// LocalAddr returns the address the Server is listening on.
func (s *Server) LocalAddr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn runs the recipient sequence on one accepted conn. The
// sequence closes the conn itself on failure.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	session, err := peer.Accept(context.Background(), conn, s.config)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("inbound sequence from %s failed: %v", conn.RemoteAddr(), err)
		}
		return
	}
	s.handler(session)
}
