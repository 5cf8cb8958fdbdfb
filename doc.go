// Package tsproto implements the connection and packet pipeline of a
// TeamSpeak-style voice/command protocol over UDP.
//
// A Socket owns one UDP socket and a table of connections keyed by a type
// the application chooses. Every connection lives behind exactly one lock,
// reachable through a shared ConnectionValue handle. Packets sent through a
// handle are encoded, fragmented and encrypted by the codec and queued for
// the socket; reliable packets are retransmitted by a per-connection resend
// engine until the peer acknowledges them or the connection is declared
// dead and removed.
//
// # Getting Started
//
// Implement a ConnectionManager (or use the connmgr package), create a
// socket and add a connection:
//
//	key, err := crypto.GeneratePrivateKey()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	options := tsproto.NewOptions()
//	options.LocalAddr = "0.0.0.0:0"
//
//	manager := connmgr.New(func(key string, con *tsproto.ConnectionValue[struct{}], p *packets.Packet) {
//	    fmt.Println(key, p)
//	})
//	sock, err := tsproto.NewSocket[string, struct{}](options, key, true, nil, manager)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sock.Close()
//
//	id, con := sock.AddConnection(struct{}{}, serverAddr)
//
//	cmd := packets.NewCommand("sendtextmessage").
//	    Push("targetmode", "3").
//	    Push("msg", "Hello")
//	err = con.SendPacket(ctx, packets.NewPacket(packets.PacketTypeCommand, cmd))
//
// Decoded packets reach the manager through the two delivery queues passed
// to ConnectionManager.NewConnection: commands and Init packets on one,
// audio on the other.
//
// # Core Types
//
//   - [Socket]: owns the UDP socket and the connection table
//   - [Connection]: per-peer protocol state, only touched under its lock
//   - [ConnectionValue]: shared handle to one connection and its data
//   - [ConnectionListener]: creation and removal hooks
//   - [ConnectionManager]: keys connections and consumes their packets
//   - [Options]: socket configuration
//
// # Concurrency
//
// The socket runs a writer and a reader goroutine plus one resend engine
// per connection. A connection's lock is never held while waiting on I/O,
// and it is taken before the table's writer lock, never after.
//
// # Subpackages
//
//   - packets: packet model, headers and command text
//   - codec: encoding, fragmentation, reassembly and encryption
//   - connmap: the lock-free read, buffered write connection table
//   - resend: the retransmission state machine
//   - transport: the UDP socket pump
//   - queue: unbounded delivery queues
//   - observe: diagnostics sinks
//   - metrics: Prometheus export
//   - config: YAML configuration
//   - connmgr: an address keyed ConnectionManager
package tsproto
