// Package observe defines the diagnostics sink of the protocol engine.
//
// Every encoded or decoded packet and every datagram crossing the socket is
// reported to a Sink. Sinks are informational: they never influence control
// flow and must not block.
package observe

import (
	"net"

	"github.com/opd-ai/tsproto/packets"
)

// Direction tells whether a record describes traffic leaving or entering
// the socket.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// String returns "out" or "in".
func (d Direction) String() string {
	if d == Inbound {
		return "in"
	}
	return "out"
}

// PacketRecord describes one logical packet.
type PacketRecord struct {
	Direction Direction
	Addr      net.Addr
	// FromClient tells whether the packet was sent by the client side of
	// the connection.
	FromClient bool
	Packet     *packets.Packet
	// Size is the serialized payload size before compression and
	// encryption.
	Size      int
	Fragments int
}

// DatagramRecord describes one datagram on the socket.
type DatagramRecord struct {
	Direction Direction
	Addr      net.Addr
	Data      []byte
}

// Sink receives diagnostics records.
type Sink interface {
	ObservePacket(rec PacketRecord)
	ObserveDatagram(rec DatagramRecord)
	// ObserveConnectionFailed reports a connection the engine gave up on.
	ObserveConnectionFailed(addr net.Addr, err error)
}

// Nop discards all records.
type Nop struct{}

func (Nop) ObservePacket(PacketRecord)              {}
func (Nop) ObserveDatagram(DatagramRecord)          {}
func (Nop) ObserveConnectionFailed(net.Addr, error) {}

// Multi fans records out to several sinks. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	}
	return out
}

type multi []Sink

func (m multi) ObservePacket(rec PacketRecord) {
	for _, s := range m {
		s.ObservePacket(rec)
	}
}

func (m multi) ObserveDatagram(rec DatagramRecord) {
	for _, s := range m {
		s.ObserveDatagram(rec)
	}
}

func (m multi) ObserveConnectionFailed(addr net.Addr, err error) {
	for _, s := range m {
		s.ObserveConnectionFailed(addr, err)
	}
}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}
