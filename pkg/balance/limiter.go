package balance

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter caps the number of in-flight balance reads and spaces out releases so
// that a burst of completed reads does not immediately start another burst.
// Waiters are admitted in FIFO order.
type Limiter struct {
	sem  *semaphore.Weighted
	pace *rate.Limiter
}

// NewLimiter allows up to n concurrent holders with at least spacing between releases
func NewLimiter(n int, spacing time.Duration) *Limiter {
	if n < 1 {
		n = 1
	}
	pace := rate.NewLimiter(rate.Inf, 1)
	if spacing > 0 {
		pace = rate.NewLimiter(rate.Every(spacing), 1)
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(n)),
		pace: pace,
	}
}

// Acquire blocks until a slot is free or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release returns a slot. The slot becomes available to the next waiter once the
// release spacing has elapsed; reservations are handed out in call order so
// releases happen in the order they were requested.
func (l *Limiter) Release() {
	delay := l.pace.Reserve().Delay()
	if delay <= 0 {
		l.sem.Release(1)
		return
	}
	time.AfterFunc(delay, func() { l.sem.Release(1) })
}
