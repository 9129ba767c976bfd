package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/engine/retry"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

func newPolicy(t *testing.T, cfg config.RetryConfig) retry.RetryPolicy {
	t.Helper()
	return retry.NewDefaultRetryPolicyFactory().Create(cfg)
}

func TestShouldRetryBuiltinClasses(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 10, Factor: 2.0})

	assert.True(t, p.ShouldRetry(exception.New("test", exception.ClassRateLimited, "throttled", nil)))
	assert.True(t, p.ShouldRetry(exception.New("test", exception.ClassTransientUnavailable, "down", nil)))

	assert.False(t, p.ShouldRetry(exception.New("test", exception.ClassValidation, "bad", nil)))
	assert.False(t, p.ShouldRetry(exception.New("test", exception.ClassDuplicateValue, "dup", nil)))
	assert.False(t, p.ShouldRetry(nil))
	assert.False(t, p.ShouldRetry(errors.New("plain")))
}

func TestShouldRetryExtraClasses(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{
		MaxAttempts:      3,
		InitialInterval:  1,
		MaxInterval:      10,
		Factor:           2.0,
		RetryableClasses: []string{string(exception.ClassTimedOut)},
	})

	assert.True(t, p.ShouldRetry(exception.New("test", exception.ClassTimedOut, "slow", nil)))
	assert.True(t, p.ShouldRetry(exception.New("test", exception.ClassRateLimited, "throttled", nil)))
	assert.False(t, p.ShouldRetry(exception.New("test", exception.ClassValidation, "bad", nil)))
}

func TestBackoffGrowsExponentially(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{MaxAttempts: 5, InitialInterval: 100, MaxInterval: 10_000, Factor: 2.0})

	assert.Equal(t, 100*time.Millisecond, p.BackoffInterval(1))
	assert.Equal(t, 200*time.Millisecond, p.BackoffInterval(2))
	assert.Equal(t, 400*time.Millisecond, p.BackoffInterval(3))
	// Attempts below 1 are clamped.
	assert.Equal(t, 100*time.Millisecond, p.BackoffInterval(0))
}

func TestBackoffCapped(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{MaxAttempts: 10, InitialInterval: 100, MaxInterval: 500, Factor: 2.0})

	assert.Equal(t, 500*time.Millisecond, p.BackoffInterval(4))
	assert.Equal(t, 500*time.Millisecond, p.BackoffInterval(9))
}

func TestBackoffJitterBounds(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 100,
		MaxInterval:     10_000,
		Factor:          2.0,
		JitterFraction:  0.5,
	})

	for i := 0; i < 50; i++ {
		d := p.BackoffInterval(2)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestFactoryDefaultsFactor(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{MaxAttempts: 3, InitialInterval: 100, MaxInterval: 10_000})

	assert.Equal(t, 200*time.Millisecond, p.BackoffInterval(2))
	assert.Equal(t, 3, p.MaxAttempts())
}

func TestSleepHonoursCancellation(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{MaxAttempts: 3, InitialInterval: 60_000, MaxInterval: 60_000, Factor: 2.0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Sleep(ctx, p, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleepElapses(t *testing.T) {
	p := newPolicy(t, config.RetryConfig{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 5, Factor: 2.0})

	err := retry.Sleep(context.Background(), p, 1)
	assert.NoError(t, err)
}
