package metrics

import (
	"context"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does
// nothing. It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordOperationStart does nothing.
func (r *NoOpMetricRecorder) RecordOperationStart(ctx context.Context, run *model.OperationRun) {}

// RecordOperationEnd does nothing.
func (r *NoOpMetricRecorder) RecordOperationEnd(ctx context.Context, run *model.OperationRun) {}

// RecordBatch does nothing.
func (r *NoOpMetricRecorder) RecordBatch(ctx context.Context, object string, result *model.BatchResult) {
}

// RecordRowOutcome does nothing.
func (r *NoOpMetricRecorder) RecordRowOutcome(ctx context.Context, object string, kind model.OperationKind, success bool) {
}

// RecordRetry does nothing.
func (r *NoOpMetricRecorder) RecordRetry(ctx context.Context, object string, reason string) {}

// RecordRollback does nothing.
func (r *NoOpMetricRecorder) RecordRollback(ctx context.Context, object string, undone int, failed int) {
}

// RecordPoll does nothing.
func (r *NoOpMetricRecorder) RecordPoll(ctx context.Context, state model.JobState) {}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartOperationSpan returns the context unchanged.
func (t *NoOpTracer) StartOperationSpan(ctx context.Context, run *model.OperationRun) (context.Context, func()) {
	return ctx, func() {}
}

// StartBatchSpan returns the context unchanged.
func (t *NoOpTracer) StartBatchSpan(ctx context.Context, batch *model.Batch) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
