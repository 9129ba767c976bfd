// Package engine executes batches against the backend: synchronous
// per-record calls below the sync threshold, asynchronous bulk jobs above
// it, both with retry on transient failures. Row failures never abort
// sibling rows; the engine always returns a full outcome set for the rows it
// was given.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moorings/bulkhead/pkg/bulk/batcher"
	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/engine/poller"
	"github.com/moorings/bulkhead/pkg/bulk/engine/ratelimit"
	"github.com/moorings/bulkhead/pkg/bulk/engine/retry"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
	"github.com/moorings/bulkhead/pkg/bulk/tracker"
)

const moduleName = "engine"

// ExecutionEngine turns batches into row outcomes. It owns the sync/async
// routing decision and the per-call retry loop; quota compliance is the
// batcher's job and arrival batches are trusted to be within limits.
type ExecutionEngine struct {
	executor port.Executor
	poller   *poller.JobPoller
	limiter  *ratelimit.Limiter
	policy   retry.RetryPolicy
	tracker  *tracker.RecordTracker
	cfg      *config.OperationConfig
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewExecutionEngine creates an ExecutionEngine.
func NewExecutionEngine(
	executor port.Executor,
	jobPoller *poller.JobPoller,
	limiter *ratelimit.Limiter,
	policyFactory *retry.DefaultRetryPolicyFactory,
	recordTracker *tracker.RecordTracker,
	cfg *config.OperationConfig,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *ExecutionEngine {
	return &ExecutionEngine{
		executor: executor,
		poller:   jobPoller,
		limiter:  limiter,
		policy:   policyFactory.Create(cfg.Retry),
		tracker:  recordTracker,
		cfg:      cfg,
		recorder: recorder,
		tracer:   tracer,
	}
}

// ExecuteBatch executes one batch and returns its merged row outcomes. A
// batch at or below the sync threshold is issued as individual synchronous
// calls; a larger batch is submitted as one asynchronous bulk job and polled
// to completion. Either way the result carries exactly one outcome per input
// record.
func (e *ExecutionEngine) ExecuteBatch(ctx context.Context, kind model.OperationKind, object string, batch *model.Batch) (*model.BatchResult, error) {
	ctx, end := e.tracer.StartBatchSpan(ctx, batch)
	defer end()

	start := time.Now()
	var result *model.BatchResult
	var err error
	if batch.RowCount() <= e.cfg.SyncThreshold {
		result, err = e.runSync(ctx, kind, object, batch)
	} else {
		result, err = e.runAsync(ctx, kind, object, batch)
	}
	if err != nil {
		e.tracer.RecordError(ctx, moduleName, err)
		return nil, err
	}

	e.recorder.RecordBatch(ctx, object, result)
	e.recorder.RecordDuration(ctx, "batch_execution", time.Since(start), map[string]string{
		"object": object,
		"kind":   kind.String(),
	})
	for _, o := range result.Outcomes {
		e.recorder.RecordRowOutcome(ctx, object, kind, o.Success)
	}
	return result, nil
}

// runSync issues one synchronous call per record, bounded by the configured
// worker count. Each call carries its own retry budget; one record's failure
// never affects another's outcome.
func (e *ExecutionEngine) runSync(ctx context.Context, kind model.OperationKind, object string, batch *model.Batch) (*model.BatchResult, error) {
	outcomes := make([]model.RowOutcome, batch.RowCount())

	g, gctx := errgroup.WithContext(ctx)
	workers := e.cfg.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, record := range batch.Records {
		i, record := i, record
		g.Go(func() error {
			outcome := e.callWithRetry(gctx, kind, object, record)
			outcome.Index = batch.Offset + i
			outcomes[i] = outcome
			// Row failures are data, not errors; only a dead context stops
			// the group.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, exception.New(moduleName, exception.ClassTimedOut, "batch execution interrupted", err)
	}

	return &model.BatchResult{
		BatchIndex: batch.Index,
		Outcomes:   outcomes,
	}, nil
}

// callWithRetry issues one record call, retrying transient transport
// failures per the retry policy. Row-level rejections reported inside a
// RowOutcome (duplicate values, invalid references, validation failures) are
// final and never retried.
func (e *ExecutionEngine) callWithRetry(ctx context.Context, kind model.OperationKind, object string, record model.Record) model.RowOutcome {
	var lastErr error
	maxAttempts := e.policy.MaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome, err := e.executor.RunSingle(ctx, kind, object, record)
		if err == nil {
			return outcome
		}
		lastErr = err

		if !e.policy.ShouldRetry(err) {
			return failedOutcome(err)
		}
		if attempt == maxAttempts {
			break
		}
		e.recorder.RecordRetry(ctx, object, string(exception.ClassOf(err)))
		logger.Debugf("ExecutionEngine: retrying %s on %s (attempt %d/%d): %v", kind, object, attempt, maxAttempts, err)
		if sleepErr := retry.Sleep(ctx, e.policy, attempt); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}

	exhausted := exception.New(moduleName, exception.ClassRetryExhausted,
		"retry budget exhausted", lastErr)
	return failedOutcome(exhausted)
}

// failedOutcome converts a transport-level error into a failed row outcome
// so sibling rows keep their isolation.
func failedOutcome(err error) model.RowOutcome {
	return model.RowOutcome{
		Success:      false,
		ErrorCode:    string(exception.ClassOf(err)),
		ErrorMessage: exception.ExtractMessage(err),
	}
}

// runAsync submits the whole batch as one bulk job and blocks until the
// poller reports a terminal state. Submission itself is retried on transient
// failures; once a handle exists the job is never resubmitted.
func (e *ExecutionEngine) runAsync(ctx context.Context, kind model.OperationKind, object string, batch *model.Batch) (*model.BatchResult, error) {
	var handle port.JobHandle
	var lastErr error
	maxAttempts := e.policy.MaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		h, err := e.executor.SubmitJob(ctx, kind, object, batch)
		if err == nil {
			handle = h
			lastErr = nil
			break
		}
		lastErr = err
		if !e.policy.ShouldRetry(err) {
			return nil, exception.New(moduleName, exception.ClassOf(err), "bulk job submission failed", err)
		}
		if attempt == maxAttempts {
			break
		}
		e.recorder.RecordRetry(ctx, object, string(exception.ClassOf(err)))
		if sleepErr := retry.Sleep(ctx, e.policy, attempt); sleepErr != nil {
			return nil, exception.New(moduleName, exception.ClassTimedOut, "bulk job submission interrupted", sleepErr)
		}
	}
	if lastErr != nil {
		return nil, exception.New(moduleName, exception.ClassRetryExhausted, "bulk job submission retry budget exhausted", lastErr)
	}

	job := model.NewJob(string(handle), batch)
	logger.Infof("ExecutionEngine: submitted bulk job %s (handle %s, %d rows).", job.ID, job.Handle, batch.RowCount())

	status, err := e.poller.Await(ctx, job, 0)
	if err != nil {
		return nil, err
	}

	outcomes := status.Results
	if len(outcomes) == 0 && batch.RowCount() > 0 {
		outcomes = wholesaleOutcomes(batch, status)
	} else if len(outcomes) == batch.RowCount() {
		// A backend that reports per-row outcomes without plan indexes gets
		// them assigned positionally from the batch offset. All-zero indexes
		// mean the backend never set them; partial indexes are kept as-is.
		unindexed := true
		for i := range outcomes {
			if outcomes[i].Index != 0 {
				unindexed = false
				break
			}
		}
		if unindexed {
			for i := range outcomes {
				outcomes[i].Index = batch.Offset + i
			}
		}
	}

	return &model.BatchResult{
		BatchIndex: batch.Index,
		Outcomes:   outcomes,
		Async:      true,
		JobID:      job.ID,
	}, nil
}

// wholesaleOutcomes synthesizes per-row outcomes for backends that report
// only a terminal job state without row detail.
func wholesaleOutcomes(batch *model.Batch, status *port.JobStatus) []model.RowOutcome {
	outcomes := make([]model.RowOutcome, batch.RowCount())
	for i := range outcomes {
		outcomes[i] = model.RowOutcome{
			Index:   batch.Offset + i,
			Success: status.State == model.JobStateComplete,
		}
		if !outcomes[i].Success {
			outcomes[i].ErrorCode = string(exception.ClassTransientUnavailable)
			outcomes[i].ErrorMessage = status.StateMessage
		}
	}
	return outcomes
}

// ExecutePlan executes every batch of the plan. Batches run concurrently
// under the shared rate limiter; each completed batch's committed rows are
// traced in commit-acknowledgement order before the next completion is
// processed. Results come back sorted by batch index regardless of
// completion order.
func (e *ExecutionEngine) ExecutePlan(ctx context.Context, plan *model.OperationPlan, seq *batcher.BatchSequence) ([]*model.BatchResult, error) {
	batches, err := seq.Collect()
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	results := make([]*model.BatchResult, 0, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			if err := e.limiter.Acquire(gctx); err != nil {
				return exception.New(moduleName, exception.ClassTimedOut, "rate limiter wait interrupted", err)
			}
			result, execErr := e.ExecuteBatch(gctx, plan.Kind, plan.Object, b)
			e.limiter.Release()
			if execErr != nil {
				return execErr
			}

			// The tracker mutex serializes appends, so traces land in the
			// order batch completions are acknowledged.
			mu.Lock()
			defer mu.Unlock()
			if plan.Kind.IsMutation() {
				if traceErr := e.traceOutcomes(gctx, plan, result.Outcomes); traceErr != nil {
					return traceErr
				}
			}
			results = append(results, result)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].BatchIndex < results[j].BatchIndex })
	return results, nil
}

// traceOutcomes records every committed row of a batch in the trace log. An
// upsert row that matched an existing record only updated it; its trace is
// recorded as an update so rollback and cleanup never delete data the
// operation did not create.
func (e *ExecutionEngine) traceOutcomes(ctx context.Context, plan *model.OperationPlan, outcomes []model.RowOutcome) error {
	for _, o := range outcomes {
		if !o.Success || o.RecordID == "" {
			continue
		}
		kind := plan.Kind
		if kind == model.OpUpsert && !o.Created {
			kind = model.OpUpdate
		}
		if _, err := e.tracker.Record(ctx, plan.Object, kind, o.RecordID); err != nil {
			return exception.New(moduleName, exception.ClassInternal, "failed to trace committed row", err)
		}
	}
	return nil
}

// ExecuteQuery runs a query plan and drains the result iterator. The
// iterator is always closed, including on partial failure.
func (e *ExecutionEngine) ExecuteQuery(ctx context.Context, plan *model.OperationPlan) ([]model.Record, error) {
	iter, err := e.executor.RunQuery(ctx, plan.Query)
	if err != nil {
		return nil, exception.New(moduleName, exception.ClassOf(err), "query execution failed", err)
	}
	defer iter.Close()

	var records []model.Record
	for {
		record, err := iter.Next(ctx)
		if err == port.ErrNoMoreRecords {
			break
		}
		if err != nil {
			return records, exception.New(moduleName, exception.ClassOf(err), "query result iteration failed", err)
		}
		records = append(records, record)
	}
	return records, nil
}
