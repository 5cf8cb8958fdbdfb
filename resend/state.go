package resend

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/opd-ai/tsproto/packets"
)

// Key identifies an in-flight packet.
type Key struct {
	Type packets.PacketType
	ID   uint16
}

// String returns "Type#id".
func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Type, k.ID)
}

type entry struct {
	key       Key
	datagrams [][]byte
	sent      time.Time
	deadline  time.Time
	retries   int
	index     int
}

// Result is the outcome of Poll.
type Result struct {
	// Resend lists the datagrams to transmit again, in send order.
	Resend [][]byte
	// Abandoned lists packets that exhausted their retries.
	Abandoned []Key
}

// State is the in-flight set of one connection. It is not safe for
// concurrent use; the owning connection's lock guards it.
type State struct {
	cfg     Config
	entries map[Key]*entry
	queue   deadlineQueue
}

// NewState creates an empty in-flight set.
func NewState(cfg Config) *State {
	return &State{
		cfg:     cfg,
		entries: make(map[Key]*entry),
	}
}

// Add records a reliable packet that was just sent as datagrams. Adding a
// key that is already in flight replaces the previous entry.
func (s *State) Add(key Key, datagrams [][]byte, now time.Time) {
	if old, ok := s.entries[key]; ok {
		heap.Remove(&s.queue, old.index)
	}
	e := &entry{
		key:       key,
		datagrams: datagrams,
		sent:      now,
		deadline:  now.Add(s.cfg.InitialTimeout),
	}
	s.entries[key] = e
	heap.Push(&s.queue, e)
}

// Ack removes key from the in-flight set. Unknown keys are ignored; the
// return value reports whether an entry was removed.
func (s *State) Ack(key Key) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	heap.Remove(&s.queue, e.index)
	return true
}

// AckType removes every in-flight packet of type t and returns how many
// were removed. Init packets carry no ids the peer could echo, so any Init
// reply acknowledges them all.
func (s *State) AckType(t packets.PacketType) int {
	n := 0
	for key := range s.entries {
		if key.Type == t && s.Ack(key) {
			n++
		}
	}
	return n
}

// Len returns the number of in-flight packets.
func (s *State) Len() int {
	return len(s.entries)
}

// NextDeadline returns the earliest deadline among in-flight packets.
func (s *State) NextDeadline() (time.Time, bool) {
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].deadline, true
}

// Poll advances every packet whose deadline is not after now. Packets that
// still have retries left are scheduled again and their datagrams returned
// for retransmission; the others are removed and reported as abandoned.
func (s *State) Poll(now time.Time) Result {
	var res Result
	for len(s.queue) > 0 && !s.queue[0].deadline.After(now) {
		e := s.queue[0]
		if e.retries >= s.cfg.MaxRetries {
			heap.Pop(&s.queue)
			delete(s.entries, e.key)
			res.Abandoned = append(res.Abandoned, e.key)
			continue
		}
		e.deadline = e.deadline.Add(s.cfg.Interval(e.retries))
		e.retries++
		heap.Fix(&s.queue, e.index)
		res.Resend = append(res.Resend, e.datagrams...)
	}
	return res
}

// Clear drops every in-flight packet.
func (s *State) Clear() {
	s.entries = make(map[Key]*entry)
	s.queue = nil
}

type deadlineQueue []*entry

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].sent.Before(q[j].sent)
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
