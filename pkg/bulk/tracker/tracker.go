// Package tracker records every row an operation commits, supports
// best-effort rollback through compensating calls or backend savepoints, and
// generates cleanup predicates for out-of-band deletion.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "tracker"

// RecordTracker owns the append-only trace log for one logical session.
// Traces are appended in commit-acknowledgement order, not submission order,
// because rollback must undo commits in true reverse-commit order. The
// tracker is the single writer to its store; callers from any goroutine go
// through its mutex.
type RecordTracker struct {
	mu    sync.Mutex
	store port.TraceStore
	seq   int64
}

// NewRecordTracker creates a RecordTracker backed by the given store.
func NewRecordTracker(store port.TraceStore) *RecordTracker {
	return &RecordTracker{store: store}
}

// Record appends a trace for a row the backend acknowledged as committed.
// Speculative tracking is not allowed: callers must only record rows whose
// outcome reported success.
func (t *RecordTracker) Record(ctx context.Context, object string, kind model.OperationKind, recordID string) (*model.RecordTrace, error) {
	if recordID == "" {
		return nil, exception.Newf(moduleName, exception.ClassValidation, "cannot trace an empty record id")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	trace := &model.RecordTrace{
		ID:        model.NewID(),
		Sequence:  t.seq,
		Object:    object,
		Kind:      kind,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
	if err := t.store.Append(ctx, trace); err != nil {
		t.seq--
		return nil, exception.New(moduleName, exception.ClassInternal, "failed to append record trace", err)
	}
	return trace, nil
}

// Snapshot returns an opaque marker for the current end of the trace log.
// When the executor supports savepoints, a backend savepoint is created for
// the same point so rollback can delegate to the native primitive.
func (t *RecordTracker) Snapshot(ctx context.Context, executor port.Executor) model.RollbackMarker {
	t.mu.Lock()
	marker := model.RollbackMarker{
		Sequence: t.seq,
		TakenAt:  time.Now(),
	}
	t.mu.Unlock()

	if sp, ok := executor.(port.SavepointExecutor); ok {
		token, err := sp.CreateSavepoint(ctx)
		if err != nil {
			logger.Warnf("RecordTracker: savepoint creation failed, falling back to compensating rollback: %v", err)
		} else {
			marker.SavepointToken = token
		}
	}
	return marker
}

// TracesSince returns all traces recorded after the marker, oldest first.
// A nil marker means the whole session.
func (t *RecordTracker) TracesSince(ctx context.Context, marker *model.RollbackMarker) ([]*model.RecordTrace, error) {
	var after int64
	if marker != nil {
		after = marker.Sequence
	}
	return t.store.ListSince(ctx, after)
}

// Count returns the number of traces recorded in the session.
func (t *RecordTracker) Count(ctx context.Context) (int64, error) {
	return t.store.Count(ctx)
}

// Store exposes the underlying trace store, for rollback bookkeeping.
func (t *RecordTracker) Store() port.TraceStore {
	return t.store
}
