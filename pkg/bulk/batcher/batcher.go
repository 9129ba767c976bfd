// Package batcher splits an operation plan's record set into batches that
// respect the per-call row and byte quotas.
package batcher

import (
	"errors"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

const moduleName = "batcher"

// ErrNoMoreBatches is returned by BatchSequence.Next when the plan's record
// set is exhausted.
var ErrNoMoreBatches = errors.New("no more batches")

// LimitAwareBatcher produces batch sequences from plans. Splitting is greedy
// first-fit: records accumulate into the current batch until adding the next
// one would exceed either quota, then the batch closes. A single record is
// never split across batches.
type LimitAwareBatcher struct{}

// NewLimitAwareBatcher creates a new LimitAwareBatcher.
func NewLimitAwareBatcher() *LimitAwareBatcher {
	return &LimitAwareBatcher{}
}

// Split returns a lazy sequence of batches for the plan. The sequence is
// deterministic: resetting and re-iterating regenerates identical batches
// from the same plan. Quota violations surface from Next, not from Split,
// because sizes are estimated lazily.
func (b *LimitAwareBatcher) Split(plan *model.OperationPlan, limits *config.LimitsConfig) (*BatchSequence, error) {
	if limits.MaxRowsPerBatch <= 0 || limits.MaxBytesPerBatch <= 0 {
		return nil, exception.Newf(moduleName, exception.ClassLimitConfiguration,
			"quotas must be positive (rows=%d, bytes=%d)", limits.MaxRowsPerBatch, limits.MaxBytesPerBatch)
	}

	maxRows := limits.MaxRowsPerBatch
	if plan.ChunkSizeHint > 0 && plan.ChunkSizeHint < maxRows {
		maxRows = plan.ChunkSizeHint
	}

	return &BatchSequence{
		plan:     plan,
		maxRows:  maxRows,
		maxBytes: limits.MaxBytesPerBatch,
	}, nil
}

// BatchSequence is a lazy, restartable iterator over a plan's batches.
type BatchSequence struct {
	plan     *model.OperationPlan
	maxRows  int
	maxBytes int

	// pos is the index of the next unconsumed record.
	pos int
	// index is the index of the next batch to emit.
	index int
}

// Next returns the next batch, or ErrNoMoreBatches when the record set is
// exhausted. A single record whose estimated size exceeds the byte quota is
// unsplittable and fails with a limit-configuration error naming its index.
func (s *BatchSequence) Next() (*model.Batch, error) {
	records := s.plan.Records
	if s.pos >= len(records) {
		return nil, ErrNoMoreBatches
	}

	batch := &model.Batch{
		Index:  s.index,
		Offset: s.pos,
	}

	for s.pos < len(records) {
		record := records[s.pos]
		size := record.EstimatedSize()

		if size > s.maxBytes {
			return nil, exception.Newf(moduleName, exception.ClassLimitConfiguration,
				"record of %d bytes exceeds max_bytes_per_batch (%d)", size, s.maxBytes).
				WithRecordIndex(s.pos)
		}
		if len(batch.Records) >= s.maxRows {
			break
		}
		if len(batch.Records) > 0 && batch.EstimatedBytes+size > s.maxBytes {
			break
		}

		batch.Records = append(batch.Records, record)
		batch.EstimatedBytes += size
		s.pos++
	}

	s.index++
	return batch, nil
}

// Reset rewinds the sequence so batches can be regenerated deterministically.
func (s *BatchSequence) Reset() {
	s.pos = 0
	s.index = 0
}

// Collect drains the sequence into a slice. Intended for plans known to fit
// in memory; streaming consumers should iterate Next directly.
func (s *BatchSequence) Collect() ([]*model.Batch, error) {
	var out []*model.Batch
	for {
		batch, err := s.Next()
		if errors.Is(err, ErrNoMoreBatches) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
}
