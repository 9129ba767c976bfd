package batcher_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/batcher"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	bulktest "github.com/moorings/bulkhead/pkg/bulk/test"
)

func limits(rows, bytes int) *config.LimitsConfig {
	return &config.LimitsConfig{MaxRowsPerBatch: rows, MaxBytesPerBatch: bytes, MaxConcurrency: 1}
}

func TestSplitByRowQuota(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(10_050))

	seq, err := b.Split(plan, limits(10_000, 100*1024*1024))
	assert.NoError(t, err)

	batches, err := seq.Collect()
	assert.NoError(t, err)
	assert.Len(t, batches, 2)
	assert.Equal(t, 10_000, batches[0].RowCount())
	assert.Equal(t, 50, batches[1].RowCount())
	assert.Equal(t, 0, batches[0].Offset)
	assert.Equal(t, 10_000, batches[1].Offset)
	assert.Equal(t, 1, batches[1].Index)
}

func TestSplitByByteQuota(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	// Each record serializes well above 100 bytes, so a 300-byte quota holds
	// only one record per batch.
	records := make([]model.Record, 4)
	for i := range records {
		records[i] = model.Record{"Name": strings.Repeat("x", 200)}
	}
	plan := bulktest.InsertPlan("Widget", records)

	seq, err := b.Split(plan, limits(100, 300))
	assert.NoError(t, err)

	batches, err := seq.Collect()
	assert.NoError(t, err)
	assert.Len(t, batches, 4)
	for _, batch := range batches {
		assert.Equal(t, 1, batch.RowCount())
		assert.LessOrEqual(t, batch.EstimatedBytes, 300)
	}
}

func TestSplitQuotaInvariants(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(777))
	lim := limits(100, 4096)

	seq, err := b.Split(plan, lim)
	assert.NoError(t, err)
	batches, err := seq.Collect()
	assert.NoError(t, err)

	total := 0
	for _, batch := range batches {
		assert.LessOrEqual(t, batch.RowCount(), lim.MaxRowsPerBatch)
		assert.LessOrEqual(t, batch.EstimatedBytes, lim.MaxBytesPerBatch)
		total += batch.RowCount()
	}
	assert.Equal(t, 777, total)
}

func TestOversizedRecordFails(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	records := []model.Record{
		{"Name": "small"},
		{"Name": strings.Repeat("x", 10_000)},
	}
	plan := bulktest.InsertPlan("Widget", records)

	seq, err := b.Split(plan, limits(100, 1024))
	assert.NoError(t, err)

	_, err = seq.Next()
	assert.Error(t, err)
	assert.True(t, exception.IsClass(err, exception.ClassLimitConfiguration))

	var oe *exception.OperationError
	assert.ErrorAs(t, err, &oe)
	assert.Equal(t, 1, oe.RecordIndex)
}

func TestSplitRejectsBadQuotas(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(1))

	_, err := b.Split(plan, limits(0, 1024))
	assert.True(t, exception.IsClass(err, exception.ClassLimitConfiguration))

	_, err = b.Split(plan, limits(10, 0))
	assert.True(t, exception.IsClass(err, exception.ClassLimitConfiguration))
}

func TestChunkSizeHintCapsRows(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(10))
	plan.ChunkSizeHint = 3

	seq, err := b.Split(plan, limits(1000, 1024*1024))
	assert.NoError(t, err)
	batches, err := seq.Collect()
	assert.NoError(t, err)
	assert.Len(t, batches, 4)
	assert.Equal(t, 3, batches[0].RowCount())
	assert.Equal(t, 1, batches[3].RowCount())
}

func TestResetRegeneratesIdenticalBatches(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(25))

	seq, err := b.Split(plan, limits(10, 1024*1024))
	assert.NoError(t, err)

	first, err := seq.Collect()
	assert.NoError(t, err)

	seq.Reset()
	second, err := seq.Collect()
	assert.NoError(t, err)

	assert.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Index, second[i].Index)
		assert.Equal(t, first[i].Offset, second[i].Offset)
		assert.Equal(t, first[i].RowCount(), second[i].RowCount())
		assert.Equal(t, first[i].EstimatedBytes, second[i].EstimatedBytes)
	}
}

func TestEmptyPlanYieldsNoBatches(t *testing.T) {
	b := batcher.NewLimitAwareBatcher()
	plan := bulktest.InsertPlan("Widget", nil)

	seq, err := b.Split(plan, limits(10, 1024))
	assert.NoError(t, err)

	_, err = seq.Next()
	assert.ErrorIs(t, err, batcher.ErrNoMoreBatches)
}
