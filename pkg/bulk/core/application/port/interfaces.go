// Package port defines the capability interfaces the orchestrator consumes.
// The backend-integration layer supplies implementations; the core never
// talks to a wire protocol directly.
package port

import (
	"context"
	"errors"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// ErrNoMoreRecords is returned by RecordIterator.Next when the result set is
// exhausted.
var ErrNoMoreRecords = errors.New("no more records")

// ErrTraceNotFound is returned by TraceStore lookups that match nothing.
var ErrTraceNotFound = errors.New("record trace not found")

// JobHandle is the backend-side identity of a submitted bulk job. It stays
// valid after a local abort, so callers can re-poll later.
type JobHandle string

// JobStatus is the backend's view of a bulk job at one poll.
type JobStatus struct {
	State model.JobState
	// Results carries the per-row outcomes once State is JOB_COMPLETE or
	// JOB_FAILED; nil before that.
	Results []model.RowOutcome
	// StateMessage is an optional backend-supplied detail string.
	StateMessage string
}

// RecordIterator is a lazy, finite sequence of query results.
type RecordIterator interface {
	// Next returns the next record, or ErrNoMoreRecords when exhausted.
	Next(ctx context.Context) (model.Record, error)
	// Close releases backend resources held by the iterator.
	Close() error
}

// Executor is the abstract backend capability used for all data operations.
// Implementations encapsulate authentication, session and transport; the
// orchestrator only sees record-level semantics.
type Executor interface {
	// RunSingle issues one synchronous call for a single record and returns
	// its outcome. Transport-level failures are returned as errors; row-level
	// rejections come back inside the RowOutcome.
	RunSingle(ctx context.Context, kind model.OperationKind, object string, record model.Record) (model.RowOutcome, error)

	// SubmitJob submits a whole batch as one asynchronous bulk job.
	SubmitJob(ctx context.Context, kind model.OperationKind, object string, batch *model.Batch) (JobHandle, error)

	// PollJob reports the current state of a submitted job.
	PollJob(ctx context.Context, handle JobHandle) (JobStatus, error)

	// CancelJob requests backend-side cancellation. The returned bool reports
	// whether the backend accepted the request, not whether it completed.
	CancelJob(ctx context.Context, handle JobHandle) (bool, error)

	// RunQuery executes a query and returns a lazy iterator over its results.
	RunQuery(ctx context.Context, text string) (RecordIterator, error)
}

// SavepointExecutor is an optional Executor capability for backends with
// native transactional savepoints. The rollback manager type-asserts for it
// and falls back to compensating calls when absent.
type SavepointExecutor interface {
	// CreateSavepoint returns an opaque backend savepoint token.
	CreateSavepoint(ctx context.Context) (string, error)
	// RollbackToSavepoint undoes everything after the token.
	RollbackToSavepoint(ctx context.Context, token string) error
}

// SchemaProvider supplies object metadata. Schemas are immutable per
// operation.
type SchemaProvider interface {
	DescribeObject(ctx context.Context, name string) (*model.ObjectSchema, error)
}

// TraceStore persists the append-only record trace log. Implementations must
// preserve insertion order by Sequence so rollback can replay in reverse.
type TraceStore interface {
	// Append stores a trace. The store assigns no fields; the tracker owns
	// sequence numbering.
	Append(ctx context.Context, trace *model.RecordTrace) error

	// ListSince returns traces with Sequence greater than afterSequence, in
	// ascending Sequence order.
	ListSince(ctx context.Context, afterSequence int64) ([]*model.RecordTrace, error)

	// MarkRolledBack flags the given trace ids as compensated.
	MarkRolledBack(ctx context.Context, traceIDs []string) error

	// Count returns the number of stored traces.
	Count(ctx context.Context) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// ReportSink persists the final operation report.
type ReportSink interface {
	Write(ctx context.Context, report *model.OperationReport) error
}
