package handshake

import "errors"

// Handshake errors.
var (
	// ErrMalformedHandshake is returned when an incoming handshake
	// packet is structurally invalid: truncated, undersized or not
	// decodable as the expected message. Fatal for the connection.
	ErrMalformedHandshake = errors.New("handshake: malformed handshake message")

	// ErrHandshakeFailure is returned when a packet decrypts or
	// authenticates incorrectly (wrong static key, bad signature).
	// Fatal for the connection; retries require a fresh connection
	// and a fresh ephemeral key pair.
	ErrHandshakeFailure = errors.New("handshake: authentication failed")

	// ErrInvalidState is returned when an operation is attempted in
	// the wrong state or by the wrong role.
	ErrInvalidState = errors.New("handshake: invalid state for operation")
)
