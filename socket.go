package tsproto

import (
	"context"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/opd-ai/tsproto/connmap"
	"github.com/opd-ai/tsproto/crypto"
	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/packets"
	"github.com/opd-ai/tsproto/transport"
)

// Socket owns a UDP socket and the table of connections using it.
//
// Lock order: a connection's lock is taken before the table lock (mu),
// never the other way round. Readers of the table take no lock at all.
type Socket[K comparable, D any] struct {
	options  Options
	identity *crypto.PrivateKey
	isClient bool
	manager  ConnectionManager[K, D]

	transport *transport.UDPTransport
	obs       observe.Sink
	clock     clock.Clock
	log       *logrus.Entry

	unknown chan<- transport.Datagram
	limiter *rate.Limiter

	table *connmap.ReadHandle[K, *ConnectionValue[D]]

	// mu guards writer and listeners.
	mu        sync.Mutex
	writer    *connmap.WriteHandle[K, *ConnectionValue[D]]
	listeners []ConnectionListener[K, D]

	ctx       context.Context
	cancel    context.CancelFunc
	draining  chan struct{}
	drainOnce sync.Once
	engines   sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewSocket binds the UDP socket and starts its I/O loops. identity is the
// private key of this side. isClient selects the header layout of
// outbound packets. Datagrams that do not belong to a connection are
// forwarded to unknown when it is not nil, so a server can accept new
// peers. A bind error is returned as *transport.Error wrapping
// transport.ErrBindFailure.
func NewSocket[K comparable, D any](options *Options, identity *crypto.PrivateKey, isClient bool,
	unknown chan<- transport.Datagram, manager ConnectionManager[K, D],
) (*Socket[K, D], error) {
	if options == nil {
		options = NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	logger := options.logger()
	obs := observe.OrNop(options.Observer)

	tr, err := transport.Listen(options.LocalAddr, transport.Options{
		Capacity: options.OutboundQueue,
		Logger:   logger,
		Observer: obs,
	})
	if err != nil {
		return nil, err
	}

	table, writer := connmap.New[K, *ConnectionValue[D]]()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Socket[K, D]{
		options:   *options,
		identity:  identity,
		isClient:  isClient,
		manager:   manager,
		transport: tr,
		obs:       obs,
		clock:     options.clock(),
		unknown:   unknown,
		limiter:   rate.NewLimiter(options.UnknownRate, options.UnknownBurst),
		table:     table,
		writer:    writer,
		ctx:       ctx,
		cancel:    cancel,
		draining:  make(chan struct{}),
		log: logger.WithFields(logrus.Fields{
			"local_addr": tr.LocalAddr().String(),
			"client":     isClient,
			"component":  "Socket",
		}),
	}

	tr.Start(s.HandleDatagram)
	return s, nil
}

// LocalAddr returns the bound address.
func (s *Socket[K, D]) LocalAddr() net.Addr {
	return s.transport.LocalAddr()
}

// Identity returns the private key of this side.
func (s *Socket[K, D]) Identity() *crypto.PrivateKey {
	return s.identity
}

// AddListener appends a lifecycle listener.
func (s *Socket[K, D]) AddListener(l ConnectionListener[K, D]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Listeners returns the number of subscribed listeners.
func (s *Socket[K, D]) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// AddConnection creates a connection to addr carrying data, publishes it
// in the table and hands it to the manager. A connection already stored
// under the same key is removed first.
func (s *Socket[K, D]) AddConnection(data D, addr net.Addr) (K, *ConnectionValue[D]) {
	con := newConnection(connectionConfig{
		addr:     addr,
		isClient: s.isClient,
		identity: s.identity,
		resend:   s.options.Resend,
		clock:    s.clock,
		out:      s.transport,
		obs:      s.obs,
		logger:   s.options.logger(),
	})

	key := s.manager.NewConnectionKey(&data, con)
	if _, ok := s.table.Get(key); ok {
		s.RemoveConnection(key)
	}

	s.mu.Lock()
	s.notifyCreated(&key, &data, con)
	cv := newConnectionValue(data, con)
	// A listener may have moved the key onto an existing connection, or a
	// concurrent AddConnection may have claimed it.
	for {
		old, ok := s.writer.Get(key)
		if !ok {
			break
		}
		s.mu.Unlock()
		s.remove(key, old)
		s.mu.Lock()
	}
	s.writer.Insert(key, cv)
	s.writer.Refresh()
	s.mu.Unlock()

	s.engines.Add(1)
	go s.runResender(key, cv)

	con.log.WithField("table_version", s.table.Version()).Info("Added connection")
	s.manager.NewConnection(cv.Clone(), con.commands, con.audio)
	return key, cv
}

// GetConnection returns the connection stored under key.
func (s *Socket[K, D]) GetConnection(key K) (*ConnectionValue[D], bool) {
	return s.table.Get(key)
}

// Connections returns the number of published connections.
func (s *Socket[K, D]) Connections() int {
	return s.table.Len()
}

// Range calls fn for every published connection until fn returns false.
func (s *Socket[K, D]) Range(fn func(K, *ConnectionValue[D]) bool) {
	s.table.Range(fn)
}

// RemoveConnection removes the connection stored under key, notifies the
// listeners and closes its delivery queues. It returns the removed handle,
// or nil when key was not present.
func (s *Socket[K, D]) RemoveConnection(key K) *ConnectionValue[D] {
	cv, ok := s.table.Get(key)
	if !ok {
		return nil
	}
	return s.remove(key, cv)
}

// remove unpublishes cv if it is still the connection stored under key.
func (s *Socket[K, D]) remove(key K, cv *ConnectionValue[D]) *ConnectionValue[D] {
	cv.c.mu.Lock()
	defer cv.c.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have removed or replaced it meanwhile.
	if cur, ok := s.writer.Get(key); !ok || !cur.Equal(cv) {
		return nil
	}

	con := cv.c.con
	s.notifyRemoved(key, &cv.c.data, con)
	s.writer.Remove(key)
	s.writer.Refresh()
	con.close()

	con.log.WithField("table_version", s.table.Version()).Info("Removed connection")
	return cv
}

// Disconnect says goodbye to the peer, waits until it acknowledged every
// reliable packet and removes the connection.
func (s *Socket[K, D]) Disconnect(ctx context.Context, key K) error {
	cv, ok := s.table.Get(key)
	if !ok {
		return ErrNoConnection
	}

	cmd := packets.NewCommand("clientdisconnect").
		Push("reasonid", "8").
		Push("reasonmsg", "leaving")
	err := cv.SendPacket(ctx, packets.NewPacket(packets.PacketTypeCommand, cmd))
	if err == nil {
		err = cv.Flush(ctx)
	}
	s.remove(key, cv)
	return err
}

// Shutdown lets every resend engine finish its in-flight packets, then
// closes the socket. When ctx expires first the socket is closed anyway
// and ctx's error returned.
func (s *Socket[K, D]) Shutdown(ctx context.Context) error {
	s.drainOnce.Do(func() { close(s.draining) })

	done := make(chan struct{})
	go func() {
		s.engines.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return multierr.Append(err, s.Close())
}

// Close removes every connection, stops the resend engines and closes
// the UDP socket.
func (s *Socket[K, D]) Close() error {
	s.closeOnce.Do(func() {
		var keys []K
		s.table.Range(func(k K, _ *ConnectionValue[D]) bool {
			keys = append(keys, k)
			return true
		})
		for _, k := range keys {
			s.RemoveConnection(k)
		}

		s.cancel()
		s.closeErr = s.transport.Close()
		s.engines.Wait()
		s.log.Info("Closed socket")
	})
	return s.closeErr
}
