package tsproto

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/tsproto/crypto"
	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/packets"
	"github.com/opd-ai/tsproto/queue"
	"github.com/opd-ai/tsproto/transport"
)

type testData struct {
	Name string
}

// testManager hands out preset keys, routes datagrams by source address
// and forwards delivered packets to channels.
type testManager struct {
	mu       sync.Mutex
	keys     []string
	routes   map[string]string
	commands chan *packets.Packet
	audio    chan *packets.Packet
}

func newTestManager(keys ...string) *testManager {
	return &testManager{
		keys:     keys,
		routes:   make(map[string]string),
		commands: make(chan *packets.Packet, 64),
		audio:    make(chan *packets.Packet, 64),
	}
}

func (m *testManager) NewConnectionKey(_ *testData, con *Connection) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := con.Addr().String()
	if len(m.keys) > 0 {
		key = m.keys[0]
		m.keys = m.keys[1:]
	}
	m.routes[con.Addr().String()] = key
	return key
}

func (m *testManager) ConnectionKey(addr net.Addr, _ *packets.Header) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.routes[addr.String()]
	return key, ok
}

func (m *testManager) NewConnection(_ *ConnectionValue[testData], commands, audio *queue.Unbounded[*packets.Packet]) {
	go forwardAll(commands, m.commands)
	go forwardAll(audio, m.audio)
}

func forwardAll(q *queue.Unbounded[*packets.Packet], ch chan<- *packets.Packet) {
	for p := range q.Out() {
		ch <- p
	}
}

// failureRecorder counts connection failures.
type failureRecorder struct {
	observe.Nop
	mu     sync.Mutex
	errors []error
}

func (r *failureRecorder) ObserveConnectionFailed(_ net.Addr, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *failureRecorder) failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func testOptions() *Options {
	options := NewOptions()
	options.LocalAddr = "127.0.0.1:0"
	options.Logger = quietLogger()
	return options
}

func newTestSocket(t *testing.T, options *Options, isClient bool, unknown chan<- transport.Datagram, manager *testManager) *Socket[string, testData] {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	sock, err := NewSocket[string, testData](options, key, isClient, unknown, manager)
	require.NoError(t, err)
	t.Cleanup(func() { sock.Close() })
	return sock
}

// rawPeer is a bare UDP endpoint collecting every datagram it receives.
type rawPeer struct {
	*transport.UDPTransport
	mu        sync.Mutex
	datagrams []transport.Datagram
}

func newRawPeer(t *testing.T) *rawPeer {
	t.Helper()
	tr, err := transport.Listen("127.0.0.1:0", transport.Options{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	p := &rawPeer{UDPTransport: tr}
	tr.Start(func(addr net.Addr, data []byte) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.datagrams = append(p.datagrams, transport.Datagram{Addr: addr, Data: data})
	})
	return p
}

func (p *rawPeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.datagrams)
}

func (p *rawPeer) received() []transport.Datagram {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]transport.Datagram(nil), p.datagrams...)
}

func receivePacket(t *testing.T, ch <-chan *packets.Packet) *packets.Packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("no packet delivered")
		return nil
	}
}
