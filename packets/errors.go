package packets

import "errors"

// Framing errors. The codec wraps them into its own error types, so callers
// can match either the codec kind or the concrete cause.
var (
	// ErrShortPacket indicates the data ends before a required field
	ErrShortPacket = errors.New("packet too short")

	// ErrInvalidType indicates an undefined packet type
	ErrInvalidType = errors.New("invalid packet type")

	// ErrInvalidFlags indicates a flag that is not allowed for the packet type
	ErrInvalidFlags = errors.New("invalid flags for packet type")

	// ErrInvalidPayload indicates a payload that does not parse for its type
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrDataMismatch indicates a payload value whose Go type does not match
	// the packet type it is sent with
	ErrDataMismatch = errors.New("payload does not match packet type")
)
