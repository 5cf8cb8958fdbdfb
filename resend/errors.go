package resend

import "errors"

var (
	// ErrResendExhausted indicates a reliable packet was retransmitted
	// MaxRetries times without being acknowledged. The connection is
	// presumed dead.
	ErrResendExhausted = errors.New("resend retries exhausted")

	// ErrInvalidConfig indicates resend parameters that cannot be used
	ErrInvalidConfig = errors.New("invalid resend configuration")
)
