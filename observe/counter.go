package observe

import (
	"net"
	"sync/atomic"
)

// Traffic is a snapshot of a Counter.
type Traffic struct {
	PacketsIn    uint64
	PacketsOut   uint64
	DatagramsIn  uint64
	DatagramsOut uint64
	BytesIn      uint64
	BytesOut     uint64
	FailedConns  uint64
}

// Counter is a Sink that totals traffic per direction.
type Counter struct {
	packets   [2]atomic.Uint64
	datagrams [2]atomic.Uint64
	bytes     [2]atomic.Uint64
	failed    atomic.Uint64
}

func (c *Counter) ObservePacket(rec PacketRecord) {
	c.packets[rec.Direction&1].Add(1)
}

func (c *Counter) ObserveDatagram(rec DatagramRecord) {
	c.datagrams[rec.Direction&1].Add(1)
	c.bytes[rec.Direction&1].Add(uint64(len(rec.Data)))
}

func (c *Counter) ObserveConnectionFailed(net.Addr, error) {
	c.failed.Add(1)
}

// Snapshot returns the current totals.
func (c *Counter) Snapshot() Traffic {
	return Traffic{
		PacketsIn:    c.packets[Inbound].Load(),
		PacketsOut:   c.packets[Outbound].Load(),
		DatagramsIn:  c.datagrams[Inbound].Load(),
		DatagramsOut: c.datagrams[Outbound].Load(),
		BytesIn:      c.bytes[Inbound].Load(),
		BytesOut:     c.bytes[Outbound].Load(),
		FailedConns:  c.failed.Load(),
	}
}
