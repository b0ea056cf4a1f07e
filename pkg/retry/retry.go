// Package retry runs an operation with bounded exponential backoff
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"near-intents/config"
)

// Policy describes how many times to try and how long to wait in between.
// The n-th wait is InitialDelay * Factor^(n-1), spread by up to ±Jitter of itself.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	Factor       float64
	Jitter       float64
}

// FromConfig builds a Policy from configuration
func FromConfig(c config.RetryConfig) Policy {
	return Policy{
		Attempts:     c.Attempts,
		InitialDelay: c.InitialDelay,
		Factor:       c.Factor,
		Jitter:       c.Jitter,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out or ctx is done. The last error is returned unwrapped.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.InitialDelay
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			t := time.NewTimer(p.spread(delay))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay = time.Duration(float64(delay) * p.Factor)
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func (p Policy) spread(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	f := 1 + p.Jitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * f)
}
