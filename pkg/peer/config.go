package peer

import (
	"time"

	"github.com/pion/logging"

	"github.com/nodelink/p2phandshake/pkg/crypto"
	"github.com/nodelink/p2phandshake/pkg/devp2p"
)

// defaultHandshakeTimeout bounds the full connection sequence when
// the Config does not set one.
const defaultHandshakeTimeout = 10 * time.Second

// Config configures a connection sequence.
type Config struct {
	// Identity is the local static key pair. Required.
	Identity *crypto.KeyPair

	// ClientID is the client identifier announced in the Hello.
	ClientID string

	// Capabilities are the protocols offered to the peer.
	Capabilities []devp2p.Cap

	// ListenPort is the TCP port announced in the Hello. Zero means
	// not listening.
	ListenPort uint64

	// MinProtocolVersion rejects peers announcing an older base
	// protocol version. Defaults to devp2p.BaseProtocolVersion.
	MinProtocolVersion uint64

	// HandshakeTimeout bounds the whole sequence from first byte to
	// negotiated session. Defaults to 10 seconds.
	HandshakeTimeout time.Duration

	// LoggerFactory creates the loggers used by the sequence and the
	// resulting session. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c Config) withDefaults() Config {
	if c.MinProtocolVersion == 0 {
		c.MinProtocolVersion = devp2p.BaseProtocolVersion
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	return c
}

func (c Config) logger(scope string) logging.LeveledLogger {
	if c.LoggerFactory == nil {
		return nil
	}
	return c.LoggerFactory.NewLogger(scope)
}
