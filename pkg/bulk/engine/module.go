package engine

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/engine/poller"
	"github.com/moorings/bulkhead/pkg/bulk/engine/ratelimit"
	"github.com/moorings/bulkhead/pkg/bulk/engine/retry"
)

// Module provides the execution engine and its supporting components: the
// job poller, the shared rate limiter and the retry policy factory.
var Module = fx.Options(
	fx.Provide(poller.NewJobPoller),
	fx.Provide(retry.NewDefaultRetryPolicyFactory),
	fx.Provide(func(cfg *config.OperationConfig) *ratelimit.Limiter {
		return ratelimit.NewLimiter(cfg.Limits.MaxConcurrency)
	}),
	fx.Provide(NewExecutionEngine),
)
