package metrics

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder and
// OpenTelemetryTracer. Applications include either this module or the core
// metrics module's no-op fallbacks, not both.
var Module = fx.Options(
	// Provide PrometheusRecorder as a core.MetricRecorder interface.
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	// Provide OpenTelemetryTracer as a core.Tracer interface.
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
