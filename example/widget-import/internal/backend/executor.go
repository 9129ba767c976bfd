// Package backend is a self-contained demo backend for the example: an
// in-memory record platform with generated ids, simulated bulk jobs and a
// fixed Widget schema. It stands in for the real transport layer.
package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// DemoBackend implements the Executor and SchemaProvider capabilities over
// an in-memory record store.
type DemoBackend struct {
	mu      sync.Mutex
	records map[string]model.Record
	jobs    map[port.JobHandle][]model.RowOutcome
	nextID  int
	nextJob int
}

// NewDemoBackend creates an empty DemoBackend.
func NewDemoBackend() *DemoBackend {
	return &DemoBackend{
		records: make(map[string]model.Record),
		jobs:    make(map[port.JobHandle][]model.RowOutcome),
	}
}

// Size returns the number of stored records.
func (b *DemoBackend) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// RunSingle commits one record synchronously.
func (b *DemoBackend) RunSingle(ctx context.Context, kind model.OperationKind, object string, record model.Record) (model.RowOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applyLocked(kind, object, record), nil
}

func (b *DemoBackend) applyLocked(kind model.OperationKind, object string, record model.Record) model.RowOutcome {
	switch kind {
	case model.OpDelete:
		id, _ := record.GetString("Id")
		if _, ok := b.records[id]; !ok {
			return model.RowOutcome{RecordID: id, ErrorCode: "NOT_FOUND", ErrorMessage: "record does not exist"}
		}
		delete(b.records, id)
		return model.RowOutcome{RecordID: id, Success: true}
	case model.OpUpdate:
		id, _ := record.GetString("Id")
		if _, ok := b.records[id]; !ok {
			return model.RowOutcome{RecordID: id, ErrorCode: "NOT_FOUND", ErrorMessage: "record does not exist"}
		}
		b.records[id] = record.Clone()
		return model.RowOutcome{RecordID: id, Success: true}
	default:
		b.nextID++
		id := fmt.Sprintf("%s-%06d", strings.ToLower(object), b.nextID)
		b.records[id] = record.Clone()
		return model.RowOutcome{RecordID: id, Success: true, Created: true}
	}
}

// SubmitJob processes the whole batch immediately and parks the outcomes
// behind a handle, so the poller still goes through its state machine.
func (b *DemoBackend) SubmitJob(ctx context.Context, kind model.OperationKind, object string, batch *model.Batch) (port.JobHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcomes := make([]model.RowOutcome, batch.RowCount())
	for i, record := range batch.Records {
		outcome := b.applyLocked(kind, object, record)
		outcome.Index = batch.Offset + i
		outcomes[i] = outcome
	}

	b.nextJob++
	handle := port.JobHandle(fmt.Sprintf("demo-job-%04d", b.nextJob))
	b.jobs[handle] = outcomes
	return handle, nil
}

// PollJob reports every known job as complete.
func (b *DemoBackend) PollJob(ctx context.Context, handle port.JobHandle) (port.JobStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	outcomes, ok := b.jobs[handle]
	if !ok {
		return port.JobStatus{}, fmt.Errorf("unknown job handle %s", handle)
	}
	return port.JobStatus{State: model.JobStateComplete, Results: outcomes}, nil
}

// CancelJob accepts but has nothing to cancel.
func (b *DemoBackend) CancelJob(ctx context.Context, handle port.JobHandle) (bool, error) {
	return true, nil
}

// RunQuery supports one query shape: everything for an object.
func (b *DemoBackend) RunQuery(ctx context.Context, text string) (port.RecordIterator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []model.Record
	for id, record := range b.records {
		r := record.Clone()
		r["Id"] = id
		out = append(out, r)
	}
	return &sliceIterator{records: out}, nil
}

// DescribeObject serves the demo Widget schema.
func (b *DemoBackend) DescribeObject(ctx context.Context, name string) (*model.ObjectSchema, error) {
	if name != "Widget" {
		return nil, fmt.Errorf("unknown object %q", name)
	}
	return &model.ObjectSchema{
		Name: "Widget",
		Fields: []model.FieldSchema{
			{Name: "Name", Type: "string", Required: true, MaxLength: 80},
			{Name: "Description", Type: "string"},
			{Name: "Quantity", Type: "int"},
			{Name: "Id", Type: "string"},
		},
	}, nil
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

var (
	_ port.Executor       = (*DemoBackend)(nil)
	_ port.SchemaProvider = (*DemoBackend)(nil)
)
