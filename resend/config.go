// Package resend tracks in-flight reliable packets and decides when to
// retransmit or abandon them.
//
// State is a pure state machine driven by the caller's clock: Add records
// a sent packet, Ack removes it, and Poll advances every entry whose
// deadline elapsed. A packet moves from Sent to Acknowledged on Ack, from
// Sent to Sent(retries+1) when its deadline elapses, and to Abandoned once
// a deadline elapses after MaxRetries retransmissions.
package resend

import (
	"fmt"
	"math"
	"time"
)

// Config holds the retransmission parameters.
type Config struct {
	// InitialTimeout is the delay between the first send and the first
	// retransmission.
	InitialTimeout time.Duration `yaml:"initial_timeout"`
	// Backoff multiplies the delay after every retransmission.
	Backoff float64 `yaml:"backoff"`
	// MaxRetries is the number of retransmissions before the packet is
	// abandoned.
	MaxRetries int `yaml:"max_retries"`
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InitialTimeout: time.Second,
		Backoff:        1.5,
		MaxRetries:     8,
	}
}

// Validate checks the parameters for sane values.
func (c Config) Validate() error {
	if c.InitialTimeout <= 0 {
		return fmt.Errorf("%w: initial timeout must be positive, got %s", ErrInvalidConfig, c.InitialTimeout)
	}
	if c.Backoff < 1 || math.IsNaN(c.Backoff) || math.IsInf(c.Backoff, 0) {
		return fmt.Errorf("%w: backoff must be a finite factor >= 1, got %v", ErrInvalidConfig, c.Backoff)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	return nil
}

// Interval returns the delay added to a deadline when a packet that was
// retransmitted retries times is sent again.
func (c Config) Interval(retries int) time.Duration {
	d := float64(c.InitialTimeout) * math.Pow(c.Backoff, float64(retries))
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
