package tsproto

import (
	"net"

	"github.com/opd-ai/tsproto/packets"
	"github.com/opd-ai/tsproto/queue"
)

// ConnectionListener is notified when connections enter or leave a
// socket's table. Hooks run synchronously with the table lock held, before
// the change is published, so they must not block or call back into the
// socket. Returning true unsubscribes the listener.
type ConnectionListener[K comparable, D any] interface {
	// OnConnectionCreated may modify the key and the data before the
	// connection is inserted.
	OnConnectionCreated(key *K, data *D, con *Connection) bool
	// OnConnectionRemoved runs with the connection lock held; data and con
	// may be used directly but the handle must not be locked again.
	OnConnectionRemoved(key K, data *D, con *Connection) bool
}

// ConnectionManager supplies the key type and consumes the packets of
// every connection. Client and server code implement it differently.
type ConnectionManager[K comparable, D any] interface {
	// NewConnectionKey assigns the key of a new connection.
	NewConnectionKey(data *D, con *Connection) K
	// ConnectionKey routes an inbound datagram to the key of its
	// connection. ok is false for datagrams of unknown peers.
	ConnectionKey(addr net.Addr, header *packets.Header) (key K, ok bool)
	// NewConnection hands over a new connection with its delivery queues:
	// commands carries Command, CommandLow and Init packets, audio carries
	// Voice and VoiceWhisper packets.
	NewConnection(con *ConnectionValue[D], commands, audio *queue.Unbounded[*packets.Packet])
}

// ListenerFuncs adapts plain functions to a ConnectionListener. Nil
// functions are skipped.
type ListenerFuncs[K comparable, D any] struct {
	Created func(key *K, data *D, con *Connection) bool
	Removed func(key K, data *D, con *Connection) bool
}

func (l ListenerFuncs[K, D]) OnConnectionCreated(key *K, data *D, con *Connection) bool {
	if l.Created == nil {
		return false
	}
	return l.Created(key, data, con)
}

func (l ListenerFuncs[K, D]) OnConnectionRemoved(key K, data *D, con *Connection) bool {
	if l.Removed == nil {
		return false
	}
	return l.Removed(key, data, con)
}

// notifyCreated calls every listener in order and drops those that
// unsubscribe. The caller holds the table lock.
func (s *Socket[K, D]) notifyCreated(key *K, data *D, con *Connection) {
	for i := 0; i < len(s.listeners); {
		if s.listeners[i].OnConnectionCreated(key, data, con) {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			continue
		}
		i++
	}
}

func (s *Socket[K, D]) notifyRemoved(key K, data *D, con *Connection) {
	for i := 0; i < len(s.listeners); {
		if s.listeners[i].OnConnectionRemoved(key, data, con) {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			continue
		}
		i++
	}
}
