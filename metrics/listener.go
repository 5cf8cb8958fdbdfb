package metrics

import (
	"github.com/opd-ai/tsproto"
)

// Listener keeps the active connection gauge in sync with a socket's
// connection table.
type Listener[K comparable, D any] struct {
	m *Metrics
}

// NewListener returns a lifecycle listener feeding m.
func NewListener[K comparable, D any](m *Metrics) *Listener[K, D] {
	return &Listener[K, D]{m: m}
}

var _ tsproto.ConnectionListener[string, struct{}] = (*Listener[string, struct{}])(nil)

func (l *Listener[K, D]) OnConnectionCreated(*K, *D, *tsproto.Connection) bool {
	l.m.ConnectionAdded()
	return false
}

func (l *Listener[K, D]) OnConnectionRemoved(K, *D, *tsproto.Connection) bool {
	l.m.ConnectionRemoved()
	return false
}
