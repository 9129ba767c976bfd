// Package orchestrator drives the full life of a bulk data operation:
// intent planning, pre-execution scoring, quota-aware batching, execution
// with retry and polling, provenance tracking, post-execution scoring and
// report assembly.
package orchestrator

import (
	"context"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/batcher"
	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/engine"
	"github.com/moorings/bulkhead/pkg/bulk/planner"
	"github.com/moorings/bulkhead/pkg/bulk/scoring"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
	"github.com/moorings/bulkhead/pkg/bulk/tracker"
)

const moduleName = "orchestrator"

// Orchestrator is the single entry point for running operations. One
// orchestrator serves any number of concurrent Run calls; the shared rate
// limiter inside the engine keeps the backend quota honest across them.
type Orchestrator struct {
	planner    *planner.RequestPlanner
	schemas    port.SchemaProvider
	batcher    *batcher.LimitAwareBatcher
	engine     *engine.ExecutionEngine
	tracker    *tracker.RecordTracker
	rollback   *tracker.RollbackManager
	scorer     *scoring.ScoringEngine
	executor   port.Executor
	reportSink port.ReportSink
	cfg        *config.OperationConfig
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewOrchestrator wires the orchestrator from its collaborators.
func NewOrchestrator(
	requestPlanner *planner.RequestPlanner,
	schemas port.SchemaProvider,
	limitBatcher *batcher.LimitAwareBatcher,
	execEngine *engine.ExecutionEngine,
	recordTracker *tracker.RecordTracker,
	rollbackManager *tracker.RollbackManager,
	scorer *scoring.ScoringEngine,
	executor port.Executor,
	reportSink port.ReportSink,
	cfg *config.OperationConfig,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Orchestrator {
	return &Orchestrator{
		planner:    requestPlanner,
		schemas:    schemas,
		batcher:    limitBatcher,
		engine:     execEngine,
		tracker:    recordTracker,
		rollback:   rollbackManager,
		scorer:     scorer,
		executor:   executor,
		reportSink: reportSink,
		cfg:        cfg,
		recorder:   recorder,
		tracer:     tracer,
	}
}

// RunResult is what a Run call hands back beyond the persisted report.
type RunResult struct {
	Run     *model.OperationRun
	Report  *model.OperationReport
	Results []*model.BatchResult
	// Marker scopes a later rollback to this run's commits.
	Marker model.RollbackMarker
	// Records holds the result set for query operations; nil for mutations.
	Records []model.Record
}

// Run executes one operation intent end to end and persists its report. A
// plan-level validation failure aborts before any batch executes; batch and
// row failures are carried in the report, not as a Run error. The returned
// error covers orchestration failures only.
func (o *Orchestrator) Run(ctx context.Context, intent planner.Intent) (*RunResult, error) {
	schema, err := o.schemas.DescribeObject(ctx, intent.Object)
	if err != nil {
		return nil, exception.New(moduleName, exception.ClassSchemaMismatch,
			"failed to describe object "+intent.Object, err)
	}

	plan, err := o.planner.Plan(intent, schema)
	if err != nil {
		return nil, err
	}

	run := model.NewOperationRun(plan)
	run.MarkAsStarted()
	o.recorder.RecordOperationStart(ctx, run)
	ctx, endSpan := o.tracer.StartOperationSpan(ctx, run)
	defer endSpan()

	preScore := o.scorer.Score(plan, nil)
	logger.Infof("Orchestrator: run %s (%s on %q, %d records) pre-scored %d/%d (%s).",
		run.ID, plan.Kind, plan.Object, plan.RecordCount(), preScore.Total, o.scorer.MaxTotal(), preScore.Rating)

	marker := o.tracker.Snapshot(ctx, o.executor)

	result := &RunResult{Run: run, Marker: marker}
	if plan.Kind == model.OpQuery || plan.Kind == model.OpBulkExport {
		result.Records, err = o.engine.ExecuteQuery(ctx, plan)
	} else {
		result.Results, err = o.executeMutation(ctx, run, plan)
	}
	if err != nil {
		run.MarkAsFailed(err)
	} else {
		run.MarkAsCompleted()
	}
	o.recorder.RecordOperationEnd(ctx, run)

	result.Report = o.assembleReport(ctx, run, plan, result, &marker)
	if sinkErr := o.reportSink.Write(ctx, result.Report); sinkErr != nil {
		logger.Errorf("Orchestrator: failed to persist report for run %s: %v", run.ID, sinkErr)
		run.AddFailure(sinkErr)
	}
	return result, err
}

// executeMutation splits the plan and runs its batches, accumulating row
// counts on the run as results arrive.
func (o *Orchestrator) executeMutation(ctx context.Context, run *model.OperationRun, plan *model.OperationPlan) ([]*model.BatchResult, error) {
	seq, err := o.batcher.Split(plan, &o.cfg.Limits)
	if err != nil {
		return nil, err
	}

	results, err := o.engine.ExecutePlan(ctx, plan, seq)
	run.BatchCount = len(results)
	for _, r := range results {
		run.Counts.Add(model.CountOutcomes(plan.Kind, r.Outcomes))
	}
	return results, err
}

// Rollback undoes the commits of a prior run, scoped by its marker.
func (o *Orchestrator) Rollback(ctx context.Context, marker model.RollbackMarker) error {
	return o.rollback.Rollback(ctx, &marker)
}

// GenerateCleanupPredicate builds an out-of-band deletion predicate from the
// tracked record log and the given pattern.
func (o *Orchestrator) GenerateCleanupPredicate(ctx context.Context, pattern model.CleanupPattern) (string, error) {
	return o.tracker.GenerateCleanupPredicate(ctx, pattern)
}

// assembleReport builds the run's report: exact counts, a bounded id sample,
// the post-execution score and the cleanup predicate when the plan asked for
// one.
func (o *Orchestrator) assembleReport(ctx context.Context, run *model.OperationRun, plan *model.OperationPlan, result *RunResult, marker *model.RollbackMarker) *model.OperationReport {
	var outcomes []model.RowOutcome
	for _, r := range result.Results {
		outcomes = append(outcomes, r.Outcomes...)
	}

	cleanupPredicate := ""
	if plan.CleanupNamePattern != "" {
		predicate, err := o.tracker.GenerateCleanupPredicate(ctx, model.CleanupPattern{
			NamePattern: plan.CleanupNamePattern,
		})
		if err != nil {
			logger.Warnf("Orchestrator: cleanup predicate generation failed for run %s: %v", run.ID, err)
		} else {
			cleanupPredicate = predicate
		}
	}

	traces, err := o.tracker.TracesSince(ctx, marker)
	if err != nil {
		logger.Warnf("Orchestrator: trace listing failed for run %s: %v", run.ID, err)
	}

	postScore := o.scorer.Score(plan, &scoring.Outcome{
		Results:          result.Results,
		Traces:           traces,
		Marker:           marker,
		CleanupPredicate: cleanupPredicate,
		InputCount:       plan.RecordCount(),
	})

	report := &model.OperationReport{
		RunID:            run.ID,
		OperationKind:    plan.Kind,
		ObjectName:       plan.Object,
		Status:           run.Status,
		Counts:           run.Counts,
		SampleRecordIDs:  model.SampleIDs(outcomes),
		ScoreReport:      postScore,
		CleanupPredicate: cleanupPredicate,
		RollbackMarker:   marker,
		StartTime:        run.StartTime,
		EndTime:          run.EndTime,
		Failures:         run.Failures,
	}

	if run.EndTime != nil {
		o.recorder.RecordDuration(ctx, "operation", run.EndTime.Sub(run.StartTime), map[string]string{
			"object": plan.Object,
			"kind":   plan.Kind.String(),
		})
	} else {
		o.recorder.RecordDuration(ctx, "operation", time.Since(run.StartTime), map[string]string{
			"object": plan.Object,
			"kind":   plan.Kind.String(),
		})
	}
	return report
}
