package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/tsproto/observe"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

type datagramRecorder struct {
	observe.Nop
	mu      sync.Mutex
	records []observe.DatagramRecord
}

func (r *datagramRecorder) ObserveDatagram(rec observe.DatagramRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *datagramRecorder) count(d observe.Direction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Direction == d {
			n++
		}
	}
	return n
}

func TestLoopback(t *testing.T) {
	recorder := &datagramRecorder{}
	a, err := Listen("127.0.0.1:0", Options{Logger: quietLogger(), Observer: recorder})
	require.NoError(t, err)
	defer a.Close()

	b, err := Listen("127.0.0.1:0", Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer b.Close()

	received := make(chan Datagram, 4)
	b.Start(func(addr net.Addr, data []byte) {
		received <- Datagram{Addr: addr, Data: data}
	})
	a.Start(nil)

	require.NoError(t, a.Send(context.Background(), b.LocalAddr(), []byte("hello")))

	select {
	case d := <-received:
		assert.Equal(t, []byte("hello"), d.Data)
		assert.Equal(t, a.LocalAddr().String(), d.Addr.String())
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}

	assert.Eventually(t, func() bool {
		return recorder.count(observe.Outbound) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBindFailure(t *testing.T) {
	a, err := Listen("127.0.0.1:0", Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer a.Close()

	_, err = Listen(a.LocalAddr().String(), Options{Logger: quietLogger()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBindFailure)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "bind", terr.Op)
}

func TestTrySendQueueFull(t *testing.T) {
	a, err := Listen("127.0.0.1:0", Options{Capacity: 2, Logger: quietLogger()})
	require.NoError(t, err)
	defer a.Close()

	// Not started, so nothing drains the queue.
	to := a.LocalAddr()
	require.NoError(t, a.TrySend(to, []byte{1}))
	require.NoError(t, a.TrySend(to, []byte{2}))
	assert.ErrorIs(t, a.TrySend(to, []byte{3}), ErrQueueFull)
	assert.Equal(t, 2, a.Queued())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Send(ctx, to, []byte{4}), context.DeadlineExceeded)
}

func TestClose(t *testing.T) {
	a, err := Listen("127.0.0.1:0", Options{Logger: quietLogger()})
	require.NoError(t, err)
	a.Start(func(net.Addr, []byte) {})

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.ErrorIs(t, a.Send(context.Background(), a.LocalAddr(), []byte{1}), ErrClosed)
	assert.ErrorIs(t, a.TrySend(a.LocalAddr(), []byte{1}), ErrClosed)
}
