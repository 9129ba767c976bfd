package planner

import "go.uber.org/fx"

// Module is an Fx module that provides the RequestPlanner.
var Module = fx.Options(
	fx.Provide(NewRequestPlanner),
)
