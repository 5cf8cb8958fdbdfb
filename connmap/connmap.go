// Package connmap is a concurrent map with one writer and many lock-free
// readers.
//
// Writes are staged on the WriteHandle and become visible to readers only
// after Refresh. Readers always observe a complete snapshot: either the
// state before a Refresh or the state after it, never a mix.
package connmap

import (
	"sync/atomic"
)

type snapshot[K comparable, V any] struct {
	version uint64
	entries map[K]V
}

type shared[K comparable, V any] struct {
	current atomic.Pointer[snapshot[K, V]]
}

// ReadHandle gives concurrent read access. It is safe to copy and to use
// from any goroutine.
type ReadHandle[K comparable, V any] struct {
	s *shared[K, V]
}

// WriteHandle stages modifications. It must be used by one goroutine at a
// time; callers serialize access themselves.
type WriteHandle[K comparable, V any] struct {
	s       *shared[K, V]
	pending []op[K, V]
}

type op[K comparable, V any] struct {
	key    K
	value  V
	remove bool
}

// New creates an empty map and returns its read and write handles.
func New[K comparable, V any]() (*ReadHandle[K, V], *WriteHandle[K, V]) {
	s := &shared[K, V]{}
	s.current.Store(&snapshot[K, V]{entries: map[K]V{}})
	return &ReadHandle[K, V]{s: s}, &WriteHandle[K, V]{s: s}
}

// Get returns the value published for key.
func (r *ReadHandle[K, V]) Get(key K) (V, bool) {
	v, ok := r.s.current.Load().entries[key]
	return v, ok
}

// Len returns the number of published entries.
func (r *ReadHandle[K, V]) Len() int {
	return len(r.s.current.Load().entries)
}

// Version increases with every Refresh that published changes.
func (r *ReadHandle[K, V]) Version() uint64 {
	return r.s.current.Load().version
}

// Range calls fn for every entry of one snapshot until fn returns false.
func (r *ReadHandle[K, V]) Range(fn func(K, V) bool) {
	for k, v := range r.s.current.Load().entries {
		if !fn(k, v) {
			return
		}
	}
}

// Reader returns a read handle sharing this map.
func (w *WriteHandle[K, V]) Reader() *ReadHandle[K, V] {
	return &ReadHandle[K, V]{s: w.s}
}

// Insert stages key -> value, replacing any previous value.
func (w *WriteHandle[K, V]) Insert(key K, value V) {
	w.pending = append(w.pending, op[K, V]{key: key, value: value})
}

// Remove stages the removal of key.
func (w *WriteHandle[K, V]) Remove(key K) {
	w.pending = append(w.pending, op[K, V]{key: key, remove: true})
}

// Pending returns the number of staged operations.
func (w *WriteHandle[K, V]) Pending() int {
	return len(w.pending)
}

// Get returns the value for key as the writer sees it, staged operations
// included.
func (w *WriteHandle[K, V]) Get(key K) (V, bool) {
	v, ok := w.s.current.Load().entries[key]
	for _, o := range w.pending {
		if o.key != key {
			continue
		}
		if o.remove {
			var zero V
			v, ok = zero, false
		} else {
			v, ok = o.value, true
		}
	}
	return v, ok
}

// Refresh publishes all staged operations atomically.
func (w *WriteHandle[K, V]) Refresh() {
	if w.Pending() == 0 {
		return
	}
	old := w.s.current.Load()
	next := &snapshot[K, V]{
		version: old.version + 1,
		entries: make(map[K]V, len(old.entries)+len(w.pending)),
	}
	for k, v := range old.entries {
		next.entries[k] = v
	}
	for _, o := range w.pending {
		if o.remove {
			delete(next.entries, o.key)
		} else {
			next.entries[o.key] = o.value
		}
	}
	clear(w.pending)
	w.pending = w.pending[:0]
	w.s.current.Store(next)
}
