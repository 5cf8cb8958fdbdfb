package tsproto

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tsproto/packets"
)

// PacketSink accepts outbound packets for one connection.
type PacketSink interface {
	SendPacket(ctx context.Context, p *packets.Packet) error
}

// cell is the single lock around a connection and its associated data.
type cell[D any] struct {
	mu   sync.Mutex
	data D
	con  *Connection

	// sendMu orders encode and enqueue of one connection's packets. It is
	// taken before mu and held while blocking on the outbound queue, which
	// mu never is.
	sendMu sync.Mutex
}

// ConnectionValue is a shared handle to one connection and the data the
// application associates with it. Copies made with Clone refer to the
// same connection; equality is identity, not content.
type ConnectionValue[D any] struct {
	c *cell[D]
}

func newConnectionValue[D any](data D, con *Connection) *ConnectionValue[D] {
	return &ConnectionValue[D]{c: &cell[D]{data: data, con: con}}
}

// Clone returns another handle to the same connection.
func (v *ConnectionValue[D]) Clone() *ConnectionValue[D] {
	return &ConnectionValue[D]{c: v.c}
}

// Equal reports whether both handles refer to the same connection.
func (v *ConnectionValue[D]) Equal(o *ConnectionValue[D]) bool {
	return v != nil && o != nil && v.c == o.c
}

// With runs fn while holding the connection lock. fn must not block on
// I/O and must not call methods of the same handle.
func (v *ConnectionValue[D]) With(fn func(data *D, con *Connection)) {
	v.c.mu.Lock()
	defer v.c.mu.Unlock()
	fn(&v.c.data, v.c.con)
}

// Done is closed when the connection is removed from its socket.
func (v *ConnectionValue[D]) Done() <-chan struct{} {
	return v.c.con.closed
}

// AsPacketSink returns the handle as a PacketSink.
func (v *ConnectionValue[D]) AsPacketSink() PacketSink {
	return v
}

// SendPacket encodes p and queues its datagrams on the socket, blocking
// while the outbound queue is full. The connection lock is released
// before queueing. Reliable packets are retransmitted until acknowledged.
func (v *ConnectionValue[D]) SendPacket(ctx context.Context, p *packets.Packet) error {
	v.c.sendMu.Lock()
	defer v.c.sendMu.Unlock()

	v.c.mu.Lock()
	con := v.c.con
	if con.isClosed() {
		v.c.mu.Unlock()
		return ErrConnectionClosed
	}
	frags, err := con.encode(p)
	v.c.mu.Unlock()
	if err != nil {
		con.log.WithFields(logrus.Fields{
			"type":  p.Type().String(),
			"error": err.Error(),
		}).Warn("Failed to encode packet")
		return err
	}

	for i := range frags {
		if err := con.out.Send(ctx, con.addr, frags[i].Data); err != nil {
			return err
		}
	}
	return nil
}

// sendReply queues an automatic reply without blocking the socket
// reader. Replies are unreliable, so one that finds the outbound queue full
// is dropped and the peer's retransmission triggers it again.
func (v *ConnectionValue[D]) sendReply(p *packets.Packet) error {
	v.c.mu.Lock()
	con := v.c.con
	if con.isClosed() {
		v.c.mu.Unlock()
		return ErrConnectionClosed
	}
	frags, err := con.encode(p)
	v.c.mu.Unlock()
	if err != nil {
		return err
	}

	for i := range frags {
		if err := con.out.TrySend(con.addr, frags[i].Data); err != nil {
			return err
		}
	}
	return nil
}

// Flush waits until every reliable packet sent so far was acknowledged.
// It returns ErrConnectionClosed when the connection is removed first.
func (v *ConnectionValue[D]) Flush(ctx context.Context) error {
	for {
		v.c.mu.Lock()
		con := v.c.con
		closed := con.isClosed()
		pending := con.resend.Len()
		progress := con.progress
		v.c.mu.Unlock()

		if closed {
			return ErrConnectionClosed
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-progress:
		case <-con.closed:
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
