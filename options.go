package tsproto

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/opd-ai/tsproto/observe"
	"github.com/opd-ai/tsproto/resend"
	"github.com/opd-ai/tsproto/transport"
)

// Options contains the configuration of a Socket.
type Options struct {
	// LocalAddr is the UDP address to bind.
	LocalAddr string
	// Resend configures retransmission of reliable packets.
	Resend resend.Config
	// OutboundQueue is the capacity of the outbound datagram queue.
	OutboundQueue int
	// UnknownRate and UnknownBurst limit how many datagrams without a
	// connection are forwarded to the owner.
	UnknownRate  rate.Limit
	UnknownBurst int

	Logger   logrus.FieldLogger
	Observer observe.Sink
	// Clock drives the resend engines. Tests replace it with a mock.
	Clock clock.Clock
}

// NewOptions creates a new default options.
func NewOptions() *Options {
	return &Options{
		LocalAddr:     "0.0.0.0:0",
		Resend:        resend.DefaultConfig(),
		OutboundQueue: transport.DefaultQueueCapacity,
		UnknownRate:   rate.Limit(50),
		UnknownBurst:  100,
	}
}

// Validate checks the options for values the socket cannot use.
func (o *Options) Validate() error {
	if o.LocalAddr == "" {
		return fmt.Errorf("%w: local address is required", ErrInvalidOptions)
	}
	if err := o.Resend.Validate(); err != nil {
		return err
	}
	if o.OutboundQueue < 1 {
		return fmt.Errorf("%w: outbound queue capacity must be positive", ErrInvalidOptions)
	}
	if o.UnknownRate < 0 || o.UnknownBurst < 0 {
		return fmt.Errorf("%w: unknown datagram limits must not be negative", ErrInvalidOptions)
	}
	return nil
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

func (o *Options) clock() clock.Clock {
	if o.Clock == nil {
		return clock.New()
	}
	return o.Clock
}
