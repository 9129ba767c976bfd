package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/engine/ratelimit"
)

func TestAcquireRelease(t *testing.T) {
	l := ratelimit.NewLimiter(2)
	assert.Equal(t, 2, l.Size())

	assert.NoError(t, l.Acquire(context.Background()))
	assert.NoError(t, l.Acquire(context.Background()))
	assert.False(t, l.TryAcquire())

	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestNonPositiveSizeClampedToOne(t *testing.T) {
	l := ratelimit.NewLimiter(0)
	assert.Equal(t, 1, l.Size())

	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
}

func TestAcquireHonoursCancellation(t *testing.T) {
	l := ratelimit.NewLimiter(1)
	assert.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
}

func TestConcurrencyNeverExceedsSize(t *testing.T) {
	const size = 3
	l := ratelimit.NewLimiter(size)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Acquire(context.Background()))
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			atomic.AddInt64(&inFlight, -1)
			l.Release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(size))
}
