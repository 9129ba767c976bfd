package tracker

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

// absentErrorCodes are backend row error codes meaning "the record is already
// gone". A compensating delete hitting one of these is treated as success, so
// rollback stays idempotent.
var absentErrorCodes = map[string]bool{
	"ENTITY_IS_DELETED": true,
	"NOT_FOUND":         true,
	"INVALID_CROSS_REFERENCE_KEY": true,
}

// RollbackManager undoes tracked commits. When the executor exposes native
// savepoints and the marker carries a token, rollback delegates to the
// backend primitive; otherwise compensating calls are issued independently
// per trace, in reverse commit order, and every failure is collected rather
// than aborting the remainder.
type RollbackManager struct {
	tracker  *RecordTracker
	executor port.Executor
	recorder metrics.MetricRecorder
}

// NewRollbackManager creates a new RollbackManager.
func NewRollbackManager(tracker *RecordTracker, executor port.Executor, recorder metrics.MetricRecorder) *RollbackManager {
	return &RollbackManager{
		tracker:  tracker,
		executor: executor,
		recorder: recorder,
	}
}

// Rollback undoes every trace recorded after the marker. A nil marker undoes
// the whole session. Failures never abort sibling compensations; they are
// aggregated into a ROLLBACK-class error listing the traces that could not be
// undone.
func (m *RollbackManager) Rollback(ctx context.Context, marker *model.RollbackMarker) error {
	if marker != nil && marker.SavepointToken != "" {
		if sp, ok := m.executor.(port.SavepointExecutor); ok {
			if err := sp.RollbackToSavepoint(ctx, marker.SavepointToken); err == nil {
				logger.Infof("RollbackManager: delegated rollback to backend savepoint %s.", marker.SavepointToken)
				return m.markAllSince(ctx, marker)
			} else {
				logger.Warnf("RollbackManager: savepoint rollback failed, falling back to compensating calls: %v", err)
			}
		}
	}

	traces, err := m.tracker.TracesSince(ctx, marker)
	if err != nil {
		return exception.New(moduleName, exception.ClassRollback, "failed to load traces for rollback", err)
	}

	var undoneIDs []string
	var failed *multierror.Error
	var unresolved []string
	undone, failures := 0, 0

	// Reverse chronological order: the last commit is undone first.
	for i := len(traces) - 1; i >= 0; i-- {
		trace := traces[i]
		if trace.RolledBack {
			continue
		}
		if err := m.compensate(ctx, trace); err != nil {
			failures++
			unresolved = append(unresolved, trace.ID)
			failed = multierror.Append(failed, err)
			continue
		}
		undone++
		undoneIDs = append(undoneIDs, trace.ID)
	}

	if len(undoneIDs) > 0 {
		if err := m.tracker.Store().MarkRolledBack(ctx, undoneIDs); err != nil {
			failed = multierror.Append(failed, exception.New(moduleName, exception.ClassRollback,
				"failed to mark traces as rolled back", err))
		}
	}

	m.recorder.RecordRollback(ctx, objectOf(traces), undone, failures)
	logger.Infof("RollbackManager: rollback finished (undone: %d, failed: %d).", undone, failures)

	if failed.ErrorOrNil() != nil {
		return exception.Newf(moduleName, exception.ClassRollback,
			"rollback left %d trace(s) un-undone: %s", failures, strings.Join(unresolved, ", ")).
			Wrap(failed)
	}
	return nil
}

// compensate issues the compensating call for one trace. Created records are
// deleted; updates and deletes carry no before-image, so without a backend
// savepoint they cannot be restored and are reported as un-undoable.
func (m *RollbackManager) compensate(ctx context.Context, trace *model.RecordTrace) error {
	switch trace.Kind {
	case model.OpInsert, model.OpUpsert, model.OpBulkImport, model.OpTreeImport:
		outcome, err := m.executor.RunSingle(ctx, model.OpDelete, trace.Object, model.Record{"Id": trace.RecordID})
		if err != nil {
			return exception.Newf(moduleName, exception.ClassRollback,
				"compensating delete for %s %s failed: %v", trace.Object, trace.RecordID, err)
		}
		if !outcome.Success && !absentErrorCodes[outcome.ErrorCode] {
			return exception.Newf(moduleName, exception.ClassRollback,
				"compensating delete for %s %s rejected: %s (%s)", trace.Object, trace.RecordID, outcome.ErrorMessage, outcome.ErrorCode)
		}
		return nil
	case model.OpUpdate, model.OpDelete:
		return exception.Newf(moduleName, exception.ClassRollback,
			"trace %s (%s on %s %s) has no before-image and cannot be compensated without a backend savepoint",
			trace.ID, trace.Kind, trace.Object, trace.RecordID)
	default:
		return exception.Newf(moduleName, exception.ClassRollback,
			"trace %s has non-mutating kind %s", trace.ID, trace.Kind)
	}
}

// markAllSince flags every trace after the marker as rolled back, used after
// a successful savepoint delegation.
func (m *RollbackManager) markAllSince(ctx context.Context, marker *model.RollbackMarker) error {
	traces, err := m.tracker.TracesSince(ctx, marker)
	if err != nil {
		return exception.New(moduleName, exception.ClassRollback, "failed to load traces after savepoint rollback", err)
	}
	var ids []string
	for _, trace := range traces {
		if !trace.RolledBack {
			ids = append(ids, trace.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return m.tracker.Store().MarkRolledBack(ctx, ids)
}

// objectOf returns the object name shared by the traces, or "mixed" when the
// rollback spans several objects.
func objectOf(traces []*model.RecordTrace) string {
	name := ""
	for _, trace := range traces {
		if name == "" {
			name = trace.Object
		} else if name != trace.Object {
			return "mixed"
		}
	}
	return name
}
