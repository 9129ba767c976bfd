// Package telemetry configures the global OpenTelemetry tracer provider.
// Span export goes over OTLP gRPC when an endpoint is configured; without
// one the provider still records spans locally so in-process tracing keeps
// working.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "telemetry"

const serviceName = "bulkhead"

// endpointEnv names the OTLP collector endpoint; empty disables export.
const endpointEnv = "BULKHEAD_OTLP_ENDPOINT"

// NewTracerProvider builds an SDK tracer provider and installs it globally.
// Callers must Shutdown the provider on application stop to flush spans.
func NewTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, exception.New(moduleName, exception.ClassInternal, "failed to build telemetry resource", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if endpoint := os.Getenv(endpointEnv); endpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, exception.New(moduleName, exception.ClassTransientUnavailable,
				"failed to create OTLP trace exporter", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("Telemetry: exporting traces to %s.", endpoint)
	} else {
		logger.Debugf("Telemetry: %s not set, span export disabled.", endpointEnv)
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return provider, nil
}
