package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

// RetryPolicy decides whether an error is retryable and how long to back off
// between attempts.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// BackoffInterval returns the wait before the given attempt (starting
	// from 1). Intervals grow exponentially, are capped, and carry jitter.
	BackoffInterval(attempt int) time.Duration
	// MaxAttempts returns the maximum number of retry attempts.
	MaxAttempts() int
}

// DefaultRetryPolicyFactory creates RetryPolicy instances from configuration.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create creates a RetryPolicy from the given retry configuration.
func (f *DefaultRetryPolicyFactory) Create(cfg config.RetryConfig) RetryPolicy {
	factor := cfg.Factor
	if factor < 1 {
		factor = 2.0
	}
	extra := make(map[exception.ErrorClass]bool, len(cfg.RetryableClasses))
	for _, name := range cfg.RetryableClasses {
		extra[exception.ErrorClass(name)] = true
	}
	return &defaultRetryPolicy{
		maxAttempts:     cfg.MaxAttempts,
		initialInterval: time.Duration(cfg.InitialInterval) * time.Millisecond,
		maxInterval:     time.Duration(cfg.MaxInterval) * time.Millisecond,
		factor:          factor,
		jitterFraction:  cfg.JitterFraction,
		extraClasses:    extra,
	}
}

// defaultRetryPolicy is the default implementation of RetryPolicy.
type defaultRetryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	factor          float64
	jitterFraction  float64
	extraClasses    map[exception.ErrorClass]bool
}

// MaxAttempts returns the maximum number of attempts.
func (p *defaultRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry determines if an error is retryable: the built-in retryable
// classes first, then any extra classes configured for this policy.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if exception.IsRetryable(err) {
		return true
	}
	if len(p.extraClasses) > 0 {
		return p.extraClasses[exception.ClassOf(err)]
	}
	return false
}

// BackoffInterval computes initialInterval * factor^(attempt-1), capped at
// maxInterval, with up to jitterFraction of random spread added so retrying
// callers do not stampede.
func (p *defaultRetryPolicy) BackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	interval := float64(p.initialInterval)
	for i := 1; i < attempt; i++ {
		interval *= p.factor
		if p.maxInterval > 0 && interval >= float64(p.maxInterval) {
			interval = float64(p.maxInterval)
			break
		}
	}
	if p.jitterFraction > 0 {
		interval += interval * p.jitterFraction * rand.Float64()
		if p.maxInterval > 0 && interval > float64(p.maxInterval) {
			interval = float64(p.maxInterval)
		}
	}
	return time.Duration(interval)
}

// Sleep waits for the backoff interval of the given attempt, honouring
// context cancellation. It returns the context error on cancellation so the
// caller can distinguish an abort from an elapsed backoff.
func Sleep(ctx context.Context, policy RetryPolicy, attempt int) error {
	timer := time.NewTimer(policy.BackoffInterval(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Verify interfaces
var _ RetryPolicy = (*defaultRetryPolicy)(nil)
