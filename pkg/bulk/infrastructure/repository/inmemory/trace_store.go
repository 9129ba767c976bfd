// Package inmemory provides an in-memory implementation of the TraceStore
// interface. It keeps the whole trace log in a slice, suitable for testing
// and single-process sessions where persistence is not required.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// InMemoryTraceStore is an in-memory implementation of the TraceStore
// interface. A RWMutex protects concurrent readers from the single writer.
type InMemoryTraceStore struct {
	traces []*model.RecordTrace
	byID   map[string]*model.RecordTrace
	mu     sync.RWMutex
}

// NewInMemoryTraceStore creates and initializes a new InMemoryTraceStore.
func NewInMemoryTraceStore() *InMemoryTraceStore {
	return &InMemoryTraceStore{
		byID: make(map[string]*model.RecordTrace),
	}
}

// Append stores a copy of the trace so later caller mutations cannot corrupt
// the log.
func (s *InMemoryTraceStore) Append(ctx context.Context, trace *model.RecordTrace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *trace
	s.traces = append(s.traces, &stored)
	s.byID[stored.ID] = &stored
	return nil
}

// ListSince returns copies of traces with Sequence greater than
// afterSequence, in ascending Sequence order.
func (s *InMemoryTraceStore) ListSince(ctx context.Context, afterSequence int64) ([]*model.RecordTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.RecordTrace
	for _, t := range s.traces {
		if t.Sequence > afterSequence {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// MarkRolledBack flags the given trace ids as compensated. Unknown ids
// return ErrTraceNotFound; known ids named before the unknown one stay
// marked.
func (s *InMemoryTraceStore) MarkRolledBack(ctx context.Context, traceIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range traceIDs {
		trace, ok := s.byID[id]
		if !ok {
			return port.ErrTraceNotFound
		}
		trace.RolledBack = true
	}
	return nil
}

// Count returns the number of stored traces.
func (s *InMemoryTraceStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.traces)), nil
}

// Close releases resources used by the store. As an in-memory store it holds
// no external resources, so this method always returns nil.
func (s *InMemoryTraceStore) Close() error {
	return nil
}

var _ port.TraceStore = (*InMemoryTraceStore)(nil)
