// Package metrics exports protocol traffic as Prometheus metrics.
//
// Metrics implements observe.Sink, so it plugs into the engine next to the
// log sink, and provides a lifecycle listener that tracks live
// connections.
package metrics

import (
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/resend"
)

const namespace = "tsproto"

// Metrics holds the protocol collectors.
type Metrics struct {
	packets     *prometheus.CounterVec
	packetBytes *prometheus.CounterVec
	fragments   *prometheus.HistogramVec
	datagrams   *prometheus.CounterVec
	dgramBytes  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	connections prometheus.Gauge
	created     prometheus.Counter
}

// New creates the collectors. They are not registered anywhere yet.
func New() *Metrics {
	return &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Logical packets encoded or decoded.",
		}, []string{"direction", "type"}),
		packetBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packet_payload_bytes_total",
			Help:      "Serialized payload bytes of logical packets.",
		}, []string{"direction", "type"}),
		fragments: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packet_fragments",
			Help:      "Datagrams per logical packet.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"direction"}),
		datagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "Datagrams written to or read from the socket.",
		}, []string{"direction"}),
		dgramBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagram_bytes_total",
			Help:      "Bytes written to or read from the socket.",
		}, []string{"direction"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_failures_total",
			Help:      "Connections the engine gave up on.",
		}, []string{"reason"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Connections currently in the connection table.",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_created_total",
			Help:      "Connections added to the connection table.",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.packets, m.packetBytes, m.fragments,
		m.datagrams, m.dgramBytes, m.failures,
		m.connections, m.created,
	}
}

// ObservePacket counts one logical packet.
func (m *Metrics) ObservePacket(rec observe.PacketRecord) {
	dir := rec.Direction.String()
	typ := "unknown"
	if rec.Packet != nil {
		typ = rec.Packet.Type().String()
	}
	m.packets.WithLabelValues(dir, typ).Inc()
	m.packetBytes.WithLabelValues(dir, typ).Add(float64(rec.Size))
	m.fragments.WithLabelValues(dir).Observe(float64(rec.Fragments))
}

// ObserveDatagram counts one datagram.
func (m *Metrics) ObserveDatagram(rec observe.DatagramRecord) {
	dir := rec.Direction.String()
	m.datagrams.WithLabelValues(dir).Inc()
	m.dgramBytes.WithLabelValues(dir).Add(float64(len(rec.Data)))
}

// ObserveConnectionFailed counts a connection failure.
func (m *Metrics) ObserveConnectionFailed(_ net.Addr, err error) {
	reason := "other"
	if errors.Is(err, resend.ErrResendExhausted) {
		reason = "resend_exhausted"
	}
	m.failures.WithLabelValues(reason).Inc()
}

// ConnectionAdded records a connection entering the table.
func (m *Metrics) ConnectionAdded() {
	m.connections.Inc()
	m.created.Inc()
}

// ConnectionRemoved records a connection leaving the table.
func (m *Metrics) ConnectionRemoved() {
	m.connections.Dec()
}
