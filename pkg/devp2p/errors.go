package devp2p

import "errors"

var (
	// ErrMalformedHello indicates a Hello payload that does not decode
	// into the expected structure.
	ErrMalformedHello = errors.New("malformed hello")

	// ErrUnsupportedVersion indicates the peer announced a base
	// protocol version below the configured minimum.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")

	// ErrNoSharedCapabilities indicates capability negotiation found
	// no protocol both sides support.
	ErrNoSharedCapabilities = errors.New("no shared capabilities")

	// ErrMalformedDisconnect indicates a Disconnect payload that does
	// not decode.
	ErrMalformedDisconnect = errors.New("malformed disconnect")
)
