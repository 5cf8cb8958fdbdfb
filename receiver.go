package tsproto

import (
	"errors"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tsproto/packets"
	"github.com/opd-ai/tsproto/queue"
	"github.com/opd-ai/tsproto/transport"
)

// HandleDatagram routes one inbound datagram to its connection. It is
// called by the socket's reader and may be called by the owner to
// re-inject a datagram it received on the unknown channel after creating
// the connection for it.
func (s *Socket[K, D]) HandleDatagram(addr net.Addr, data []byte) {
	header, err := packets.PeekHeader(data, !s.isClient)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"remote_addr": addr.String(),
			"size":        len(data),
			"error":       err.Error(),
		}).Debug("Dropped datagram with invalid header")
		return
	}

	if key, ok := s.manager.ConnectionKey(addr, header); ok {
		if cv, ok := s.table.Get(key); ok {
			s.receive(cv, data)
			return
		}
	}
	s.forwardUnknown(addr, data)
}

func (s *Socket[K, D]) receive(cv *ConnectionValue[D], data []byte) {
	cv.c.mu.Lock()
	con := cv.c.con
	if con.isClosed() {
		cv.c.mu.Unlock()
		return
	}
	decoded, err := con.receiver.Decode(data, con.cipher)
	if err == nil && decoded.Packet != nil {
		con.acknowledge(decoded.Packet)
	}
	cv.c.mu.Unlock()

	if err != nil {
		con.log.WithFields(logrus.Fields{
			"size":  len(data),
			"error": err.Error(),
		}).Debug("Dropped malformed datagram")
		return
	}

	if decoded.Reply != nil {
		if err := cv.sendReply(decoded.Reply); err != nil && !errors.Is(err, ErrConnectionClosed) {
			con.log.WithFields(logrus.Fields{
				"type":   decoded.Reply.Type().String(),
				"queued": con.out.Queued(),
				"error":  err.Error(),
			}).Debug("Failed to send reply")
		}
	}

	p := decoded.Packet
	if p == nil {
		return
	}

	var target *queue.Unbounded[*packets.Packet]
	switch p.Type() {
	case packets.PacketTypeCommand, packets.PacketTypeCommandLow, packets.PacketTypeInit:
		target = con.commands
	case packets.PacketTypeVoice, packets.PacketTypeVoiceWhisper:
		target = con.audio
	default:
		return
	}

	if err := target.Push(p); err != nil {
		con.log.WithFields(logrus.Fields{
			"type":  p.Type().String(),
			"id":    p.Header.ID,
			"error": err.Error(),
		}).Debug("Delivery channel closed, dropping packet")
	}
}

// forwardUnknown passes a datagram without connection to the owner,
// subject to the rate limit. It never blocks the reader.
func (s *Socket[K, D]) forwardUnknown(addr net.Addr, data []byte) {
	fields := logrus.Fields{
		"remote_addr": addr.String(),
		"size":        len(data),
	}
	if s.unknown == nil {
		s.log.WithFields(fields).Debug("Dropped datagram from unknown peer")
		return
	}
	if !s.limiter.Allow() {
		s.log.WithFields(fields).Debug("Rate limited datagram from unknown peer")
		return
	}
	select {
	case s.unknown <- transport.Datagram{Addr: addr, Data: data}:
	default:
		s.log.WithFields(fields).Warn("Unknown datagram channel full, dropping datagram")
	}
}
