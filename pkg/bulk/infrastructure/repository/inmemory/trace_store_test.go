package inmemory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/infrastructure/repository/inmemory"
)

func trace(seq int64) *model.RecordTrace {
	return &model.RecordTrace{
		ID:        fmt.Sprintf("trace-%03d", seq),
		Sequence:  seq,
		Object:    "Widget",
		Kind:      model.OpInsert,
		RecordID:  fmt.Sprintf("w-%03d", seq),
		Timestamp: time.Now(),
	}
}

func TestAppendAndList(t *testing.T) {
	s := inmemory.NewInMemoryTraceStore()
	ctx := context.Background()

	for _, seq := range []int64{1, 2, 3} {
		assert.NoError(t, s.Append(ctx, trace(seq)))
	}

	all, err := s.ListSince(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	for i, tr := range all {
		assert.Equal(t, int64(i+1), tr.Sequence)
	}

	tail, err := s.ListSince(ctx, 2)
	assert.NoError(t, err)
	assert.Len(t, tail, 1)
	assert.Equal(t, int64(3), tail[0].Sequence)

	count, err := s.Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestAppendStoresCopy(t *testing.T) {
	s := inmemory.NewInMemoryTraceStore()
	ctx := context.Background()

	original := trace(1)
	assert.NoError(t, s.Append(ctx, original))
	original.RecordID = "mutated"

	listed, err := s.ListSince(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, "w-001", listed[0].RecordID)
}

func TestListReturnsCopies(t *testing.T) {
	s := inmemory.NewInMemoryTraceStore()
	ctx := context.Background()
	assert.NoError(t, s.Append(ctx, trace(1)))

	first, _ := s.ListSince(ctx, 0)
	first[0].RolledBack = true

	second, _ := s.ListSince(ctx, 0)
	assert.False(t, second[0].RolledBack)
}

func TestMarkRolledBack(t *testing.T) {
	s := inmemory.NewInMemoryTraceStore()
	ctx := context.Background()
	assert.NoError(t, s.Append(ctx, trace(1)))
	assert.NoError(t, s.Append(ctx, trace(2)))

	assert.NoError(t, s.MarkRolledBack(ctx, []string{"trace-001"}))

	listed, _ := s.ListSince(ctx, 0)
	assert.True(t, listed[0].RolledBack)
	assert.False(t, listed[1].RolledBack)
}

func TestMarkRolledBackUnknownID(t *testing.T) {
	s := inmemory.NewInMemoryTraceStore()
	ctx := context.Background()
	assert.NoError(t, s.Append(ctx, trace(1)))

	err := s.MarkRolledBack(ctx, []string{"trace-001", "no-such-trace"})
	assert.ErrorIs(t, err, port.ErrTraceNotFound)

	// Ids named before the unknown one stay marked.
	listed, _ := s.ListSince(ctx, 0)
	assert.True(t, listed[0].RolledBack)
}

func TestClose(t *testing.T) {
	s := inmemory.NewInMemoryTraceStore()
	assert.NoError(t, s.Close())
}
