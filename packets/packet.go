// Package packets defines the logical packet model and the wire framing of
// the voice/command protocol.
//
// A Packet is the unit the application works with: a Header plus a typed
// payload. On the wire every packet travels as one or more datagrams, each
// starting with a fixed header:
//
//	server -> client: [id u16][type|flags u8][frag u8 if Fragmented][payload]
//	client -> server: [id u16][client id u16][type|flags u8][frag u8 if Fragmented][payload]
//
// All multi-byte integers are big endian. The fragment byte carries the
// fragment index in its low seven bits and marks the terminal fragment with
// its high bit.
//
// Example:
//
//	cmd := packets.NewCommand("sendtextmessage")
//	cmd.Push("targetmode", "3")
//	cmd.Push("msg", "Hello")
//
//	p := packets.NewPacket(packets.PacketTypeCommand, cmd)
package packets

import "fmt"

// PacketType identifies the kind of a packet. The numeric values are the
// wire values stored in the low nibble of the type byte.
type PacketType uint8

const (
	PacketTypeVoice PacketType = iota
	PacketTypeVoiceWhisper
	PacketTypeCommand
	PacketTypeCommandLow
	PacketTypePing
	PacketTypePong
	PacketTypeAck
	PacketTypeAckLow
	PacketTypeInit

	// packetTypeCount is the number of defined packet types.
	packetTypeCount
)

var packetTypeNames = [...]string{
	PacketTypeVoice:        "Voice",
	PacketTypeVoiceWhisper: "VoiceWhisper",
	PacketTypeCommand:      "Command",
	PacketTypeCommandLow:   "CommandLow",
	PacketTypePing:         "Ping",
	PacketTypePong:         "Pong",
	PacketTypeAck:          "Ack",
	PacketTypeAckLow:       "AckLow",
	PacketTypeInit:         "Init",
}

// String returns the name of the packet type.
func (t PacketType) String() string {
	if t.Valid() {
		return packetTypeNames[t]
	}
	return fmt.Sprintf("PacketType(%d)", uint8(t))
}

// Valid reports whether t is a defined packet type.
func (t PacketType) Valid() bool {
	return t < packetTypeCount
}

// IsReliable reports whether packets of this type must be acknowledged by
// the peer and are therefore subject to retransmission.
func (t PacketType) IsReliable() bool {
	switch t {
	case PacketTypeCommand, PacketTypeCommandLow, PacketTypeInit:
		return true
	default:
		return false
	}
}

// IsVoice reports whether the type carries audio.
func (t PacketType) IsVoice() bool {
	return t == PacketTypeVoice || t == PacketTypeVoiceWhisper
}

// AckType returns the packet type used to acknowledge packets of type t.
// The second return value is false for types that are not acknowledged
// with an explicit ack packet.
func (t PacketType) AckType() (PacketType, bool) {
	switch t {
	case PacketTypeCommand:
		return PacketTypeAck, true
	case PacketTypeCommandLow:
		return PacketTypeAckLow, true
	default:
		return 0, false
	}
}

// AcknowledgedType is the inverse of AckType: for Ack and AckLow it returns
// the type of the packets they acknowledge.
func (t PacketType) AcknowledgedType() (PacketType, bool) {
	switch t {
	case PacketTypeAck:
		return PacketTypeCommand, true
	case PacketTypeAckLow:
		return PacketTypeCommandLow, true
	default:
		return 0, false
	}
}

// Packet is a logical protocol packet.
type Packet struct {
	Header Header
	Data   Data
}

// NewPacket creates a packet of the given type carrying data.
// The id is assigned when the packet is encoded.
func NewPacket(t PacketType, data Data) *Packet {
	return &Packet{
		Header: Header{Type: t},
		Data:   data,
	}
}

// Type returns the packet's type.
func (p *Packet) Type() PacketType {
	return p.Header.Type
}

// String returns a short description used in logs.
func (p *Packet) String() string {
	return fmt.Sprintf("%s(id=%d) %v", p.Header.Type, p.Header.ID, p.Data)
}
