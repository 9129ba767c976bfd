package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Operation metrics
	operationDurationSeconds *prometheus.HistogramVec
	operationStatusCounter   *prometheus.CounterVec

	// Batch metrics
	batchDurationSeconds *prometheus.HistogramVec
	batchRowsCounter     *prometheus.CounterVec

	// Row metrics
	rowOutcomeCounter *prometheus.CounterVec
	retryCounter      *prometheus.CounterVec

	// Rollback and polling metrics
	rollbackCounter *prometheus.CounterVec
	pollCounter     *prometheus.CounterVec

	// Generic named durations
	durationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_operation_duration_seconds",
			Help:    "Duration of orchestrated bulk operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"object", "kind", "status"}),
		operationStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_operation_status_total",
			Help: "Total number of bulk operations by status.",
		}, []string{"object", "kind", "status"}),
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_batch_duration_seconds",
			Help:    "Duration of batch executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"object", "kind"}),
		batchRowsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_batch_rows_total",
			Help: "Total rows executed per batch outcome.",
		}, []string{"object", "mode", "result"}),
		rowOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_row_outcome_total",
			Help: "Total row outcomes by operation kind and result.",
		}, []string{"object", "kind", "result"}),
		retryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_retry_total",
			Help: "Total call retries by reason.",
		}, []string{"object", "reason"}),
		rollbackCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_rollback_traces_total",
			Help: "Total rollback compensations by result.",
		}, []string{"object", "result"}),
		pollCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulk_job_poll_total",
			Help: "Total asynchronous job polls by observed state.",
		}, []string{"state"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulk_duration_seconds",
			Help:    "Named durations recorded by the orchestrator.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "object", "kind"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.operationDurationSeconds)
	registry.MustRegister(r.operationStatusCounter)
	registry.MustRegister(r.batchDurationSeconds)
	registry.MustRegister(r.batchRowsCounter)
	registry.MustRegister(r.rowOutcomeCounter)
	registry.MustRegister(r.retryCounter)
	registry.MustRegister(r.rollbackCounter)
	registry.MustRegister(r.pollCounter)
	registry.MustRegister(r.durationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordOperationStart records the start of an OperationRun.
func (r *PrometheusRecorder) RecordOperationStart(ctx context.Context, run *model.OperationRun) {
	r.operationStatusCounter.WithLabelValues(run.Object, run.Kind.String(), string(run.Status)).Inc()
	logger.Debugf("Metrics: operation %s started.", run.ID)
}

// RecordOperationEnd records the end of an OperationRun.
func (r *PrometheusRecorder) RecordOperationEnd(ctx context.Context, run *model.OperationRun) {
	r.operationStatusCounter.WithLabelValues(run.Object, run.Kind.String(), string(run.Status)).Inc()
	if run.EndTime == nil {
		return
	}
	duration := run.EndTime.Sub(run.StartTime).Seconds()
	r.operationDurationSeconds.WithLabelValues(run.Object, run.Kind.String(), string(run.Status)).Observe(duration)
	logger.Debugf("Metrics: operation %s ended. Duration: %.3fs", run.ID, duration)
}

// RecordBatch records a completed batch and its outcome mix.
func (r *PrometheusRecorder) RecordBatch(ctx context.Context, object string, result *model.BatchResult) {
	mode := "sync"
	if result.Async {
		mode = "async"
	}
	r.batchRowsCounter.WithLabelValues(object, mode, "success").Add(float64(result.SuccessCount()))
	r.batchRowsCounter.WithLabelValues(object, mode, "failure").Add(float64(result.FailureCount()))
}

// RecordRowOutcome records a single row outcome.
func (r *PrometheusRecorder) RecordRowOutcome(ctx context.Context, object string, kind model.OperationKind, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.rowOutcomeCounter.WithLabelValues(object, kind.String(), result).Inc()
}

// RecordRetry records a retry attempt.
func (r *PrometheusRecorder) RecordRetry(ctx context.Context, object string, reason string) {
	r.retryCounter.WithLabelValues(object, reason).Inc()
}

// RecordRollback records compensating actions issued during a rollback.
func (r *PrometheusRecorder) RecordRollback(ctx context.Context, object string, undone int, failed int) {
	r.rollbackCounter.WithLabelValues(object, "undone").Add(float64(undone))
	r.rollbackCounter.WithLabelValues(object, "failed").Add(float64(failed))
}

// RecordPoll records one poll of an asynchronous job.
func (r *PrometheusRecorder) RecordPoll(ctx context.Context, state model.JobState) {
	r.pollCounter.WithLabelValues(state.String()).Inc()
}

// RecordDuration records a named duration with optional tags.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.durationSeconds.WithLabelValues(name, tags["object"], tags["kind"]).Observe(duration.Seconds())
	if name == "batch_execution" {
		r.batchDurationSeconds.WithLabelValues(tags["object"], tags["kind"]).Observe(duration.Seconds())
	}
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
