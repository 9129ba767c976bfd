package scoring

import (
	"go.uber.org/fx"
)

// Module provides the rubric scoring engine.
var Module = fx.Options(
	fx.Provide(NewScoringEngine),
)
