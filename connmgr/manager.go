// Package connmgr provides a ConnectionManager that keys connections by
// peer address and hands every delivered packet to a callback.
package connmgr

import (
	"net"
	"sync"

	"github.com/opd-ai/tsproto"
	"github.com/opd-ai/tsproto/packets"
	"github.com/opd-ai/tsproto/queue"
)

// Handler consumes one packet of a connection. Handlers of one connection
// run on two goroutines: one for commands and one for audio.
type Handler[D any] func(key string, con *tsproto.ConnectionValue[D], p *packets.Packet)

// Manager keys connections by the string form of the peer address.
type Manager[D any] struct {
	handler Handler[D]
	wg      sync.WaitGroup
}

var _ tsproto.ConnectionManager[string, struct{}] = (*Manager[struct{}])(nil)

// New creates a manager calling handler for every delivered packet. With a
// nil handler the delivery queues are closed and packets dropped.
func New[D any](handler Handler[D]) *Manager[D] {
	return &Manager[D]{handler: handler}
}

// Key returns the connection key for a peer address.
func Key(addr net.Addr) string {
	return addr.String()
}

// NewConnectionKey keys con by its peer address.
func (m *Manager[D]) NewConnectionKey(_ *D, con *tsproto.Connection) string {
	return Key(con.Addr())
}

// ConnectionKey routes every datagram by its source address.
func (m *Manager[D]) ConnectionKey(addr net.Addr, _ *packets.Header) (string, bool) {
	return Key(addr), true
}

// NewConnection starts forwarding the connection's queues to the handler.
func (m *Manager[D]) NewConnection(cv *tsproto.ConnectionValue[D], commands, audio *queue.Unbounded[*packets.Packet]) {
	if m.handler == nil {
		commands.Close()
		audio.Close()
		return
	}

	var key string
	cv.With(func(_ *D, con *tsproto.Connection) {
		key = Key(con.Addr())
	})

	m.wg.Add(2)
	go m.forward(key, cv, commands)
	go m.forward(key, cv, audio)
}

// Wait blocks until the queues of every removed connection are drained.
func (m *Manager[D]) Wait() {
	m.wg.Wait()
}

func (m *Manager[D]) forward(key string, cv *tsproto.ConnectionValue[D], q *queue.Unbounded[*packets.Packet]) {
	defer m.wg.Done()
	for p := range q.Out() {
		m.handler(key, cv, p)
	}
}
