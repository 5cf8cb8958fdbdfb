// Package codec turns logical packets into datagrams and back.
//
// A Sender owns the outbound packet id counters of one connection and a
// Receiver owns its reassembly buffers and duplicate window. Neither is
// safe for concurrent use: both live inside a connection and are guarded
// by its lock.
package codec

import (
	"github.com/opd-ai/tsproto/packets"
)

const (
	// MaxDatagramSize is the largest datagram the codec produces.
	MaxDatagramSize = 500

	// MaxFragments is the most fragments one packet may be split into.
	MaxFragments = packets.MaxFragmentIndex + 1

	// CompressThreshold is the command payload size from which
	// compression is attempted.
	CompressThreshold = 256

	// maxPayloadSize bounds decompressed and reassembled payloads.
	maxPayloadSize = MaxFragments * MaxDatagramSize

	typeCount = int(packets.PacketTypeInit) + 1
)

// Nonce derives the AEAD nonce of one fragment. Every (direction, type,
// generation, id, fragment) tuple is sent once, so nonces never repeat
// for distinct plaintexts; retransmissions reuse the sealed bytes.
func Nonce(fromClient bool, t packets.PacketType, fragment uint8, generation uint32, id uint16) uint64 {
	var n uint64
	if fromClient {
		n = 1 << 63
	}
	n |= uint64(t&0x0f) << 56
	n |= uint64(fragment&packets.MaxFragmentIndex) << 48
	n |= uint64(generation) << 16
	n |= uint64(id)
	return n
}

// requiresEncryption lists the types that must not travel in plaintext
// once a session key exists.
func requiresEncryption(t packets.PacketType) bool {
	switch t {
	case packets.PacketTypeCommand, packets.PacketTypeCommandLow,
		packets.PacketTypeAck, packets.PacketTypeAckLow:
		return true
	default:
		return false
	}
}

// sentEncrypted reports whether packets of type t are encrypted when a
// session key exists. Init starts the key exchange and ping traffic stays
// readable for keepalive handling.
func sentEncrypted(t packets.PacketType) bool {
	switch t {
	case packets.PacketTypeInit, packets.PacketTypePing, packets.PacketTypePong:
		return false
	default:
		return true
	}
}
