package metrics

import (
	"context"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics about
// orchestrated operations. It standardizes operation, batch and row level
// events so different metrics backends (Prometheus, OpenTelemetry Metrics)
// can be plugged in.
type MetricRecorder interface {
	// RecordOperationStart records the start of an OperationRun.
	RecordOperationStart(ctx context.Context, run *model.OperationRun)

	// RecordOperationEnd records the end of an OperationRun, including its
	// final status and row counts.
	RecordOperationEnd(ctx context.Context, run *model.OperationRun)

	// RecordBatch records a completed batch and its outcome mix.
	RecordBatch(ctx context.Context, object string, result *model.BatchResult)

	// RecordRowOutcome records a single row outcome.
	//
	// object: The target object name.
	// kind: The operation kind.
	// success: Whether the row committed.
	RecordRowOutcome(ctx context.Context, object string, kind model.OperationKind, success bool)

	// RecordRetry records a retry attempt.
	//
	// object: The target object name.
	// reason: The error class that triggered the retry.
	RecordRetry(ctx context.Context, object string, reason string)

	// RecordRollback records compensating actions issued during a rollback.
	RecordRollback(ctx context.Context, object string, undone int, failed int)

	// RecordPoll records one poll of an asynchronous job.
	RecordPoll(ctx context.Context, state model.JobState)

	// RecordDuration records a named duration with optional tags.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
