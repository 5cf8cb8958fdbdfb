package transport

import (
	"errors"
	"fmt"
)

// Transport errors
var (
	// ErrBindFailure indicates the UDP socket could not be created
	ErrBindFailure = errors.New("bind failure")

	// ErrSocketIO indicates a failed send or receive on the socket
	ErrSocketIO = errors.New("socket i/o error")

	// ErrQueueFull indicates the outbound queue has no free slot
	ErrQueueFull = errors.New("outbound queue full")

	// ErrClosed indicates the transport was closed
	ErrClosed = errors.New("transport closed")
)

// Error represents a socket error with the operation and peer involved.
type Error struct {
	Op   string // operation that caused the error
	Addr string // address if relevant
	Err  error  // underlying error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("udp %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("udp %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, addr string, kind, err error) *Error {
	return &Error{
		Op:   op,
		Addr: addr,
		Err:  fmt.Errorf("%w: %w", kind, err),
	}
}
