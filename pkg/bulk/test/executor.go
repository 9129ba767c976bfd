// Package test provides shared fakes and fixtures for orchestrator tests: a
// scriptable Executor, schema factories and intent builders.
package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// RowHook lets a test script the outcome of one RunSingle call. Returning a
// non-nil error simulates a transport-level failure.
type RowHook func(call int, kind model.OperationKind, object string, record model.Record) (model.RowOutcome, error)

// FakeExecutor is an in-memory Executor. By default every call succeeds and
// committed records land in Store keyed by generated ids; hooks override
// behavior per test.
type FakeExecutor struct {
	mu sync.Mutex

	// Store holds committed records by id.
	Store map[string]model.Record
	// Calls counts RunSingle invocations.
	Calls int
	// Deleted lists ids passed to delete calls, in order.
	Deleted []string

	// OnRunSingle, when set, decides each RunSingle outcome.
	OnRunSingle RowHook
	// ExternalIDField, when set, makes upserts match existing records on this
	// field: a match updates in place and reports Created=false.
	ExternalIDField string
	// JobStates scripts successive PollJob responses per handle.
	JobStates map[port.JobHandle][]port.JobStatus
	// SubmitErr fails SubmitJob when set.
	SubmitErr error
	// QueryRecords is returned by RunQuery.
	QueryRecords []model.Record
	// QueryErr fails RunQuery when set.
	QueryErr error

	polls   map[port.JobHandle]int
	nextID  int
	nextJob int
}

// NewFakeExecutor creates a FakeExecutor with empty state.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		Store:     make(map[string]model.Record),
		JobStates: make(map[port.JobHandle][]port.JobStatus),
		polls:     make(map[port.JobHandle]int),
	}
}

// RunSingle applies the hook when present, otherwise commits the record and
// reports success with a generated id.
func (e *FakeExecutor) RunSingle(ctx context.Context, kind model.OperationKind, object string, record model.Record) (model.RowOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++

	if e.OnRunSingle != nil {
		return e.OnRunSingle(e.Calls, kind, object, record)
	}
	return e.commitLocked(kind, object, record), nil
}

// commitLocked applies the default success semantics. Callers hold e.mu.
func (e *FakeExecutor) commitLocked(kind model.OperationKind, object string, record model.Record) model.RowOutcome {
	switch kind {
	case model.OpDelete:
		id, _ := record.GetString("Id")
		delete(e.Store, id)
		e.Deleted = append(e.Deleted, id)
		return model.RowOutcome{RecordID: id, Success: true}
	case model.OpUpdate:
		id, _ := record.GetString("Id")
		e.Store[id] = record.Clone()
		return model.RowOutcome{RecordID: id, Success: true}
	case model.OpUpsert:
		if id, ok := e.matchExternalIDLocked(record); ok {
			e.Store[id] = record.Clone()
			return model.RowOutcome{RecordID: id, Success: true}
		}
		return e.insertLocked(object, record)
	default:
		return e.insertLocked(object, record)
	}
}

// insertLocked commits the record under a fresh generated id. Callers hold
// e.mu.
func (e *FakeExecutor) insertLocked(object string, record model.Record) model.RowOutcome {
	e.nextID++
	id := fmt.Sprintf("%s-%04d", object, e.nextID)
	e.Store[id] = record.Clone()
	return model.RowOutcome{RecordID: id, Success: true, Created: true}
}

// matchExternalIDLocked finds a stored record whose ExternalIDField value
// equals the incoming record's. Callers hold e.mu.
func (e *FakeExecutor) matchExternalIDLocked(record model.Record) (string, bool) {
	if e.ExternalIDField == "" {
		return "", false
	}
	want, _ := record.GetString(e.ExternalIDField)
	if want == "" {
		return "", false
	}
	for id, existing := range e.Store {
		if got, _ := existing.GetString(e.ExternalIDField); got == want {
			return id, true
		}
	}
	return "", false
}

// SubmitJob registers a job whose polls follow the scripted JobStates, or
// completes immediately with per-row successes when nothing is scripted.
func (e *FakeExecutor) SubmitJob(ctx context.Context, kind model.OperationKind, object string, batch *model.Batch) (port.JobHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.SubmitErr != nil {
		return "", e.SubmitErr
	}

	e.nextJob++
	handle := port.JobHandle(fmt.Sprintf("job-%03d", e.nextJob))
	if _, scripted := e.JobStates[handle]; !scripted {
		outcomes := make([]model.RowOutcome, batch.RowCount())
		for i, record := range batch.Records {
			outcome := e.commitLocked(kind, object, record)
			outcome.Index = batch.Offset + i
			outcomes[i] = outcome
		}
		e.JobStates[handle] = []port.JobStatus{
			{State: model.JobStateComplete, Results: outcomes},
		}
	}
	return handle, nil
}

// PollJob replays the scripted statuses, repeating the last one forever.
func (e *FakeExecutor) PollJob(ctx context.Context, handle port.JobHandle) (port.JobStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	states, ok := e.JobStates[handle]
	if !ok || len(states) == 0 {
		return port.JobStatus{}, fmt.Errorf("unknown job handle %s", handle)
	}
	i := e.polls[handle]
	e.polls[handle]++
	if i >= len(states) {
		i = len(states) - 1
	}
	return states[i], nil
}

// CancelJob always accepts.
func (e *FakeExecutor) CancelJob(ctx context.Context, handle port.JobHandle) (bool, error) {
	return true, nil
}

// RunQuery returns an iterator over QueryRecords.
func (e *FakeExecutor) RunQuery(ctx context.Context, text string) (port.RecordIterator, error) {
	if e.QueryErr != nil {
		return nil, e.QueryErr
	}
	return &sliceIterator{records: e.QueryRecords}, nil
}

type sliceIterator struct {
	records []model.Record
	pos     int
}

func (it *sliceIterator) Next(ctx context.Context) (model.Record, error) {
	if it.pos >= len(it.records) {
		return nil, port.ErrNoMoreRecords
	}
	r := it.records[it.pos]
	it.pos++
	return r, nil
}

func (it *sliceIterator) Close() error { return nil }

var _ port.Executor = (*FakeExecutor)(nil)

// FakeSavepointExecutor extends FakeExecutor with scripted savepoints.
type FakeSavepointExecutor struct {
	*FakeExecutor
	// Savepoints lists created savepoint tokens.
	Savepoints []string
	// RolledBackTo lists tokens passed to RollbackToSavepoint.
	RolledBackTo []string
}

// NewFakeSavepointExecutor creates a FakeSavepointExecutor.
func NewFakeSavepointExecutor() *FakeSavepointExecutor {
	return &FakeSavepointExecutor{FakeExecutor: NewFakeExecutor()}
}

// CreateSavepoint returns a fresh token.
func (e *FakeSavepointExecutor) CreateSavepoint(ctx context.Context) (string, error) {
	token := fmt.Sprintf("sp-%03d", len(e.Savepoints)+1)
	e.Savepoints = append(e.Savepoints, token)
	return token, nil
}

// RollbackToSavepoint records the rollback request.
func (e *FakeSavepointExecutor) RollbackToSavepoint(ctx context.Context, token string) error {
	e.RolledBackTo = append(e.RolledBackTo, token)
	return nil
}

var _ port.SavepointExecutor = (*FakeSavepointExecutor)(nil)
