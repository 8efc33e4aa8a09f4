package workers

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"media-toolkit/internal/metrics"
)

// Limiter caps the number of concurrently running jobs.
type Limiter struct {
	sem     *semaphore.Weighted
	size    int
	running atomic.Int64
	waiting atomic.Int64
}

// NewLimiter returns a Limiter with n slots. n < 1 is treated as 1.
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Acquire blocks until a slot is free. It returns ctx.Err() if the context
// ends first, in which case no slot is held.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.waiting.Add(1)
	metrics.JobsWaiting.Inc()
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	metrics.JobsWaiting.Dec()
	if err != nil {
		return err
	}
	l.running.Add(1)
	metrics.JobsInProgress.Inc()
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.running.Add(-1)
	metrics.JobsInProgress.Dec()
	l.sem.Release(1)
}

// Size returns the number of slots.
func (l *Limiter) Size() int { return l.size }

// Running returns the number of held slots.
func (l *Limiter) Running() int { return int(l.running.Load()) }

// Waiting returns the number of callers blocked in Acquire.
func (l *Limiter) Waiting() int { return int(l.waiting.Load()) }
