package tsproto

import "errors"

var (
	// ErrConnectionClosed indicates the connection was removed from its
	// socket
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInvalidOptions indicates socket options that cannot be used
	ErrInvalidOptions = errors.New("invalid options")

	// ErrNoConnection indicates no connection exists for a key
	ErrNoConnection = errors.New("no such connection")
)
