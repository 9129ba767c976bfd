package orchestrator

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/batcher"
	"github.com/moorings/bulkhead/pkg/bulk/engine"
	"github.com/moorings/bulkhead/pkg/bulk/factory"
	"github.com/moorings/bulkhead/pkg/bulk/planner"
	"github.com/moorings/bulkhead/pkg/bulk/scoring"
	"github.com/moorings/bulkhead/pkg/bulk/tracker"
)

// Module wires the full orchestration stack. Applications add a config
// module, a metrics module, a trace store, a report sink and an Executor
// implementation on top.
var Module = fx.Options(
	planner.Module,
	batcher.Module,
	engine.Module,
	tracker.Module,
	scoring.Module,
	factory.Module,
	fx.Provide(NewOrchestrator),
)
