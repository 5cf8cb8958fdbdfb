// Package queue provides the unbounded delivery channel that carries
// decoded packets from the pipeline to application consumers.
//
// The pipeline must never stall on a slow consumer, so Push never blocks:
// items are buffered until the consumer reads them from Out.
package queue

import (
	"errors"
	"sync"
)

// ErrChannelClosed indicates the consumer closed the channel or the
// producer already finished it.
var ErrChannelClosed = errors.New("delivery channel closed")

// Unbounded is a single-producer channel with an unlimited buffer.
type Unbounded[T any] struct {
	mu       sync.Mutex
	buf      []T
	finished bool // producer is done, Out closes once drained
	closed   bool // consumer is gone, buffered items are discarded

	signal    chan struct{}
	out       chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewUnbounded creates a channel and starts its forwarding goroutine.
func NewUnbounded[T any]() *Unbounded[T] {
	u := &Unbounded[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go u.run()
	return u
}

// Push buffers v for the consumer. It never blocks and fails with
// ErrChannelClosed after Close or Finish.
func (u *Unbounded[T]) Push(v T) error {
	u.mu.Lock()
	if u.closed || u.finished {
		u.mu.Unlock()
		return ErrChannelClosed
	}
	u.buf = append(u.buf, v)
	u.mu.Unlock()

	u.notify()
	return nil
}

// Out is the receive side. It is closed after Finish once every buffered
// item was delivered, or right after Close.
func (u *Unbounded[T]) Out() <-chan T {
	return u.out
}

// Len returns the number of buffered items not yet handed to the consumer.
func (u *Unbounded[T]) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.buf)
}

// Finish is called by the producer when no more items will be pushed.
func (u *Unbounded[T]) Finish() {
	u.mu.Lock()
	u.finished = true
	u.mu.Unlock()
	u.notify()
}

// Close is called by a consumer that stops reading. Buffered items are
// dropped and further pushes fail. A consumer that abandons Out without
// calling Close leaves the forwarding goroutine blocked on the next item
// for good, even after Finish, so consumers must call Close when they stop
// early.
func (u *Unbounded[T]) Close() {
	u.mu.Lock()
	u.closed = true
	u.buf = nil
	u.mu.Unlock()
	u.closeOnce.Do(func() { close(u.done) })
}

func (u *Unbounded[T]) notify() {
	select {
	case u.signal <- struct{}{}:
	default:
	}
}

func (u *Unbounded[T]) run() {
	defer close(u.out)

	var zero T
	for {
		u.mu.Lock()
		if u.closed {
			u.mu.Unlock()
			return
		}
		if len(u.buf) == 0 {
			finished := u.finished
			u.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-u.signal:
			case <-u.done:
				return
			}
			continue
		}
		v := u.buf[0]
		u.buf[0] = zero
		u.buf = u.buf[1:]
		u.mu.Unlock()

		select {
		case u.out <- v:
		case <-u.done:
			return
		}
	}
}
