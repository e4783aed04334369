package frame

import "errors"

// Frame transport errors.
var (
	// ErrMACMismatch is returned when a frame's header or body MAC
	// does not match the rolling MAC state. There is no way to
	// resynchronize; the connection must be torn down.
	ErrMACMismatch = errors.New("frame: MAC mismatch")

	// ErrMalformedFrame is returned when a frame decrypts to
	// something that cannot be parsed.
	ErrMalformedFrame = errors.New("frame: malformed frame")

	// ErrFrameTooLarge is returned when a payload exceeds the 24-bit
	// frame size limit.
	ErrFrameTooLarge = errors.New("frame: payload exceeds 24-bit size limit")
)
