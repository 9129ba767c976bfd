package batcher

import "go.uber.org/fx"

// Module is an Fx module that provides the LimitAwareBatcher.
var Module = fx.Options(
	fx.Provide(NewLimitAwareBatcher),
)
