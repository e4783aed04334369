package transport

import "errors"

var (
	// ErrNoHandler is returned when a Server is created without a
	// session handler.
	ErrNoHandler = errors.New("no session handler provided")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("already started")

	// ErrClosed is returned when the transport has been stopped.
	ErrClosed = errors.New("transport closed")
)
