package metrics

import (
	"context"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of orchestrated
// operations, enabling visualization of plan and batch execution flows.
type Tracer interface {
	// StartOperationSpan starts a span for an OperationRun.
	//
	// Returns: A context with the new span set, and a function to end the
	// span. The returned function should be called in a defer statement.
	StartOperationSpan(ctx context.Context, run *model.OperationRun) (context.Context, func())

	// StartBatchSpan starts a span for one batch, as a child of the
	// operation span.
	StartBatchSpan(ctx context.Context, batch *model.Batch) (context.Context, func())

	// RecordError records an error in the current span.
	//
	// module: The component where the error occurred (e.g. "engine",
	// "poller", "tracker").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
