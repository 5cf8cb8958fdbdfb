package codec

import (
	"errors"
	"fmt"
	"net"

	"github.com/opd-ai/tsproto/packets"
)

// Codec errors
var (
	// ErrMalformedPacket indicates an inbound datagram that failed
	// validation. The datagram is dropped; the connection is unaffected.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrPacketTooLarge indicates a payload above the fragmentation ceiling
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrEncryptionRequired indicates a plaintext packet of a type that
	// must be encrypted once the session key is known
	ErrEncryptionRequired = errors.New("packet type must be encrypted")

	// ErrNoCipher indicates an encrypted packet arrived before a session
	// key was set
	ErrNoCipher = errors.New("no session key for encrypted packet")

	// ErrFragmentOrder indicates fragments that contradict each other
	ErrFragmentOrder = errors.New("inconsistent fragments")
)

// MalformedPacketError describes why an inbound datagram was rejected.
// errors.Is matches both ErrMalformedPacket and the underlying cause.
type MalformedPacketError struct {
	Addr   net.Addr
	Reason string
	Err    error
}

func (e *MalformedPacketError) Error() string {
	if e.Addr != nil {
		return fmt.Sprintf("malformed packet from %s: %s: %v", e.Addr, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed packet: %s: %v", e.Reason, e.Err)
}

func (e *MalformedPacketError) Unwrap() []error {
	return []error{ErrMalformedPacket, e.Err}
}

// CodecError is returned when an outbound packet cannot be encoded.
type CodecError struct {
	Type packets.PacketType
	Op   string
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("encode %s: %s: %v", e.Type, e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func malformed(addr net.Addr, reason string, err error) *MalformedPacketError {
	return &MalformedPacketError{Addr: addr, Reason: reason, Err: err}
}
