// Package ratelimit provides the shared token bucket that keeps concurrent
// backend calls inside the platform's concurrent-request quota.
package ratelimit

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter is a token bucket sized to the backend's concurrent-request quota.
// Acquire blocks until a token is available rather than erroring; the only
// failure mode is context cancellation. All batches of all concurrently
// executing plans share one Limiter.
type Limiter struct {
	sem  *semaphore.Weighted
	size int64
}

// NewLimiter creates a Limiter holding the given number of tokens. A
// non-positive size is treated as 1 so the limiter always makes progress.
func NewLimiter(size int) *Limiter {
	if size <= 0 {
		size = 1
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Acquire blocks until a token is available or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryAcquire takes a token without blocking, reporting success.
func (l *Limiter) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release returns a token to the bucket.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Size returns the bucket capacity.
func (l *Limiter) Size() int {
	return int(l.size)
}
