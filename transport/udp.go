package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/tsproto/observe"
)

const (
	// readTimeout bounds each blocking read so the reader notices
	// cancellation.
	readTimeout = 100 * time.Millisecond

	// readBufferSize is larger than any datagram the protocol produces so
	// oversized datagrams arrive whole and are rejected by the codec.
	readBufferSize = 2048

	// DefaultQueueCapacity is the outbound queue capacity used when none
	// is configured.
	DefaultQueueCapacity = 50
)

// Datagram is one UDP payload with its peer address.
type Datagram struct {
	Addr net.Addr
	Data []byte
}

// Handler receives every inbound datagram. data is owned by the handler.
type Handler func(addr net.Addr, data []byte)

// Options configures a UDPTransport.
type Options struct {
	// Capacity of the outbound queue.
	Capacity int
	// Logger defaults to the standard logrus logger.
	Logger logrus.FieldLogger
	// Observer receives a record per datagram sent or received.
	Observer observe.Sink
}

// UDPTransport owns the UDP socket. One goroutine drains the bounded
// outbound queue to the wire and one reads inbound datagrams.
type UDPTransport struct {
	conn   net.PacketConn
	out    chan Datagram
	log    *logrus.Entry
	obs    observe.Sink
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Listen binds a UDP socket on listenAddr. A bind error is returned as
// *Error wrapping ErrBindFailure.
func Listen(listenAddr string, opts Options) (*UDPTransport, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, newError("bind", listenAddr, ErrBindFailure, err)
	}

	if opts.Capacity <= 0 {
		opts.Capacity = DefaultQueueCapacity
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	t := &UDPTransport{
		conn:   conn,
		out:    make(chan Datagram, opts.Capacity),
		obs:    observe.OrNop(opts.Observer),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		log: opts.Logger.WithFields(logrus.Fields{
			"local_addr": conn.LocalAddr().String(),
			"component":  "UDPTransport",
		}),
	}

	t.log.Info("Bound UDP socket")
	return t, nil
}

// Start runs the writer and reader loops. handler is called from the
// reader goroutine for every datagram. Start has no effect when called
// again.
func (t *UDPTransport) Start(handler Handler) {
	t.startOnce.Do(func() {
		t.group.Go(t.writeLoop)
		t.group.Go(func() error {
			return t.readLoop(handler)
		})
	})
}

// Send queues b for addr, blocking while the queue is full.
func (t *UDPTransport) Send(ctx context.Context, addr net.Addr, b []byte) error {
	if err := t.ctx.Err(); err != nil {
		return ErrClosed
	}
	select {
	case t.out <- Datagram{Addr: addr, Data: b}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return ErrClosed
	}
}

// TrySend queues b for addr without blocking. It returns ErrQueueFull when
// the queue has no free slot.
func (t *UDPTransport) TrySend(addr net.Addr, b []byte) error {
	if err := t.ctx.Err(); err != nil {
		return ErrClosed
	}
	select {
	case t.out <- Datagram{Addr: addr, Data: b}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Queued returns the number of datagrams waiting to be written.
func (t *UDPTransport) Queued() int {
	return len(t.out)
}

// LocalAddr returns the bound address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Done is closed once the transport is shutting down.
func (t *UDPTransport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close stops both loops and closes the socket. Datagrams still queued
// are dropped.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		err := t.conn.Close()
		if err != nil {
			err = newError("close", "", ErrSocketIO, err)
		}
		t.closeErr = multierr.Append(err, t.group.Wait())
		t.log.Info("Closed UDP socket")
	})
	return t.closeErr
}

func (t *UDPTransport) writeLoop() error {
	for {
		select {
		case <-t.ctx.Done():
			return nil
		case d := <-t.out:
			t.write(d)
		}
	}
}

func (t *UDPTransport) write(d Datagram) {
	if _, err := t.conn.WriteTo(d.Data, d.Addr); err != nil {
		if t.ctx.Err() != nil {
			return
		}
		t.log.WithFields(logrus.Fields{
			"remote_addr": d.Addr.String(),
			"size":        len(d.Data),
			"error":       newError("write", d.Addr.String(), ErrSocketIO, err).Error(),
		}).Warn("Failed to send datagram")
		return
	}
	t.obs.ObserveDatagram(observe.DatagramRecord{
		Direction: observe.Outbound,
		Addr:      d.Addr,
		Data:      d.Data,
	})
}

func (t *UDPTransport) readLoop(handler Handler) error {
	buffer := make([]byte, readBufferSize)
	for {
		if t.ctx.Err() != nil {
			return nil
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, addr, err := t.conn.ReadFrom(buffer)
		if err != nil {
			if t.handleReadError(err) {
				return nil
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buffer[:n])
		t.obs.ObserveDatagram(observe.DatagramRecord{
			Direction: observe.Inbound,
			Addr:      addr,
			Data:      data,
		})
		if handler != nil {
			handler(addr, data)
		}
	}
}

// handleReadError logs err and reports whether the reader must stop.
func (t *UDPTransport) handleReadError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	if t.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return true
	}
	t.log.WithFields(logrus.Fields{
		"error": newError("read", "", ErrSocketIO, err).Error(),
	}).Debug("Error reading datagram")
	return false
}
