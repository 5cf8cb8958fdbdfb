package observe

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/tsproto/packets"
)

// Verbosity selects how much traffic LogSink prints.
type Verbosity int

const (
	// Quiet logs only connection failures.
	Quiet Verbosity = iota
	// Commands logs the text of command packets.
	Commands
	// Packets logs every logical packet.
	Packets
	// Datagrams additionally logs every datagram on the socket.
	Datagrams
)

// LogSink writes records to a logrus logger at debug level.
type LogSink struct {
	Logger    logrus.FieldLogger
	Verbosity Verbosity
}

// NewLogSink creates a sink logging through logger. A nil logger uses the
// logrus standard logger.
func NewLogSink(logger logrus.FieldLogger, v Verbosity) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{Logger: logger, Verbosity: v}
}

func (l *LogSink) ObservePacket(rec PacketRecord) {
	if l.Verbosity < Commands || rec.Packet == nil {
		return
	}
	t := rec.Packet.Type()
	if l.Verbosity == Commands {
		if t != packets.PacketTypeCommand && t != packets.PacketTypeCommandLow {
			return
		}
	}

	fields := logrus.Fields{
		"component": "packet",
		"direction": rec.Direction.String(),
		"type":      t.String(),
		"id":        rec.Packet.Header.ID,
		"size":      rec.Size,
	}
	if rec.Addr != nil {
		fields["addr"] = rec.Addr.String()
	}
	if rec.Fragments > 1 {
		fields["fragments"] = rec.Fragments
	}
	if cmd, ok := rec.Packet.Data.(*packets.Command); ok {
		fields["command"] = cmd.String()
	}
	l.Logger.WithFields(fields).Debug("Packet")
}

func (l *LogSink) ObserveDatagram(rec DatagramRecord) {
	if l.Verbosity < Datagrams {
		return
	}
	fields := logrus.Fields{
		"component": "udp",
		"direction": rec.Direction.String(),
		"size":      len(rec.Data),
	}
	if rec.Addr != nil {
		fields["addr"] = rec.Addr.String()
	}
	l.Logger.WithFields(fields).Debugf("Datagram %x", rec.Data)
}

func (l *LogSink) ObserveConnectionFailed(addr net.Addr, err error) {
	fields := logrus.Fields{"component": "connection"}
	if addr != nil {
		fields["addr"] = addr.String()
	}
	l.Logger.WithFields(fields).WithError(err).Warn("Connection failed")
}
