package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
)

const tracerName = "github.com/moorings/bulkhead"

// OpenTelemetryTracer is an implementation of metrics.Tracer using
// OpenTelemetry. It uses the globally registered tracer provider; wiring an
// exporter is the application's concern.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer() *OpenTelemetryTracer {
	return &OpenTelemetryTracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartOperationSpan starts a span for an OperationRun.
func (t *OpenTelemetryTracer) StartOperationSpan(ctx context.Context, run *model.OperationRun) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "bulk.operation",
		trace.WithAttributes(
			attribute.String("bulk.run_id", run.ID),
			attribute.String("bulk.object", run.Object),
			attribute.String("bulk.kind", run.Kind.String()),
		))
	return ctx, func() {
		span.SetAttributes(attribute.String("bulk.status", string(run.Status)))
		span.End()
	}
}

// StartBatchSpan starts a span for one batch execution.
func (t *OpenTelemetryTracer) StartBatchSpan(ctx context.Context, batch *model.Batch) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "bulk.batch",
		trace.WithAttributes(
			attribute.Int("bulk.batch_index", batch.Index),
			attribute.Int("bulk.batch_rows", batch.RowCount()),
			attribute.Int("bulk.batch_bytes", batch.EstimatedBytes),
		))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("bulk.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch value := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, value))
		case int:
			attrs = append(attrs, attribute.Int(k, value))
		case bool:
			attrs = append(attrs, attribute.Bool(k, value))
		case float64:
			attrs = append(attrs, attribute.Float64(k, value))
		default:
			attrs = append(attrs, attribute.String(k, fmtValue(value)))
		}
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func fmtValue(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
