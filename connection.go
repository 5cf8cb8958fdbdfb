package tsproto

import (
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tsproto/codec"
	"github.com/opd-ai/tsproto/crypto"
	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/packets"
	"github.com/opd-ai/tsproto/queue"
	"github.com/opd-ai/tsproto/resend"
	"github.com/opd-ai/tsproto/transport"
)

// Connection is the protocol state of one peer. Apart from the immutable
// getters (ID, Addr, IsClient, Logger, Done) it must only be used while
// its ConnectionValue lock is held.
type Connection struct {
	id       uuid.UUID
	addr     net.Addr
	isClient bool
	identity *crypto.PrivateKey

	peerKey  *crypto.PublicKey
	cipher   crypto.PacketCipher
	clientID uint16

	sender   *codec.Sender
	receiver *codec.Receiver
	resend   *resend.State
	clock    clock.Clock
	out      *transport.UDPTransport
	log      *logrus.Entry

	commands *queue.Unbounded[*packets.Packet]
	audio    *queue.Unbounded[*packets.Packet]

	// wake nudges the resend engine after a reliable packet was queued.
	wake chan struct{}
	// progress is closed and replaced whenever in-flight packets leave
	// the resend state.
	progress chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

type connectionConfig struct {
	addr     net.Addr
	isClient bool
	identity *crypto.PrivateKey
	resend   resend.Config
	clock    clock.Clock
	out      *transport.UDPTransport
	obs      observe.Sink
	logger   logrus.FieldLogger
}

func newConnection(cfg connectionConfig) *Connection {
	id := uuid.New()
	return &Connection{
		id:       id,
		addr:     cfg.addr,
		isClient: cfg.isClient,
		identity: cfg.identity,
		sender:   codec.NewSender(cfg.addr, cfg.isClient, cfg.obs),
		receiver: codec.NewReceiver(cfg.addr, !cfg.isClient, cfg.obs),
		resend:   resend.NewState(cfg.resend),
		clock:    cfg.clock,
		out:      cfg.out,
		log: cfg.logger.WithFields(logrus.Fields{
			"conn_id":   id.String(),
			"addr":      cfg.addr.String(),
			"component": "Connection",
		}),
		commands: queue.NewUnbounded[*packets.Packet](),
		audio:    queue.NewUnbounded[*packets.Packet](),
		wake:     make(chan struct{}, 1),
		progress: make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// ID is a random identifier used to tell connections apart in logs.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Addr returns the peer address.
func (c *Connection) Addr() net.Addr {
	return c.addr
}

// IsClient reports whether this side of the connection is the client.
func (c *Connection) IsClient() bool {
	return c.isClient
}

// Logger returns the connection's log entry.
func (c *Connection) Logger() *logrus.Entry {
	return c.log
}

// Done is closed when the connection is removed.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// ClientID returns the client id sent in client headers.
func (c *Connection) ClientID() uint16 {
	return c.clientID
}

// SetClientID sets the client id the server assigned to this client.
func (c *Connection) SetClientID(id uint16) {
	c.clientID = id
	c.sender.SetClientID(id)
}

// PublicKey returns the public key of the socket identity.
func (c *Connection) PublicKey() crypto.PublicKey {
	return c.identity.PublicKey()
}

// PeerKey returns the peer's public key once it is known.
func (c *Connection) PeerKey() (crypto.PublicKey, bool) {
	if c.peerKey == nil {
		return crypto.PublicKey{}, false
	}
	return *c.peerKey, true
}

// SetPeerKey derives the session cipher from the socket identity, the
// peer's public key and the salt both sides agreed on for this connection
// (see crypto.SessionSalt). From then on Command and Ack packets are
// encrypted in both directions.
func (c *Connection) SetPeerKey(peer crypto.PublicKey, salt []byte) error {
	cipher, err := crypto.NewSessionCipher(c.identity, peer, salt)
	if err != nil {
		return err
	}
	c.peerKey = &peer
	c.cipher = cipher
	c.log.WithField("peer_key", peer.String()[:16]).Debug("Session key established")
	return nil
}

// Encrypted reports whether a session cipher is set.
func (c *Connection) Encrypted() bool {
	return c.cipher != nil
}

// InFlight returns the number of reliable packets awaiting an ack.
func (c *Connection) InFlight() int {
	return c.resend.Len()
}

// NextID returns the id the next outbound packet of type t gets.
func (c *Connection) NextID(t packets.PacketType) uint16 {
	id, _ := c.sender.NextID(t)
	return id
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// close marks the connection removed, drops its in-flight packets and
// finishes its delivery queues.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.resend.Clear()
		c.commands.Finish()
		c.audio.Finish()
	})
}

// encode turns p into datagrams and records reliable packets in the
// resend state.
func (c *Connection) encode(p *packets.Packet) ([]packets.Fragment, error) {
	frags, err := c.sender.Encode(p, c.cipher)
	if err != nil {
		return nil, err
	}
	if p.Type().IsReliable() {
		datagrams := make([][]byte, len(frags))
		for i := range frags {
			datagrams[i] = frags[i].Data
		}
		c.resend.Add(resend.Key{Type: p.Type(), ID: p.Header.ID}, datagrams, c.clock.Now())
		c.nudge()
	}
	return frags, nil
}

// acknowledge applies an inbound packet to the resend state. Init packets
// carry no ack of their own: the peer's next Init or its first command
// acknowledges them.
func (c *Connection) acknowledge(p *packets.Packet) {
	removed := 0
	switch p.Type() {
	case packets.PacketTypeAck, packets.PacketTypeAckLow:
		ack, ok := p.Data.(*packets.Ack)
		if !ok {
			return
		}
		acked, _ := p.Type().AcknowledgedType()
		if c.resend.Ack(resend.Key{Type: acked, ID: ack.ID}) {
			removed = 1
		}
	case packets.PacketTypeInit, packets.PacketTypeCommand, packets.PacketTypeCommandLow:
		removed = c.resend.AckType(packets.PacketTypeInit)
	}
	if removed > 0 {
		c.signalProgress()
	}
}

func (c *Connection) nudge() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Connection) signalProgress() {
	close(c.progress)
	c.progress = make(chan struct{})
}
