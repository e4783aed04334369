package peer

import (
	"errors"
	"fmt"
)

// ErrHandshakeTimeout indicates the connection sequence did not
// complete within the configured timeout.
var ErrHandshakeTimeout = errors.New("handshake timed out")

// ErrDisconnected indicates the remote ended the session with a
// Disconnect message instead of completing the sequence.
var ErrDisconnected = errors.New("remote disconnected")

// Stage identifies the phase of the connection sequence in which an
// error occurred.
type Stage int

const (
	StageHandshake Stage = iota
	StageFrame
	StageCapabilities
)

func (s Stage) String() string {
	switch s {
	case StageHandshake:
		return "handshake"
	case StageFrame:
		return "frame"
	case StageCapabilities:
		return "capabilities"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StageError reports the stage an error occurred in while keeping the
// underlying error available through errors.Is and errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
