package telemetry

import (
	"context"

	"go.uber.org/fx"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Module is an Fx module that provides the tracer provider and shuts it down
// on application stop.
var Module = fx.Options(
	fx.Provide(func(lc fx.Lifecycle) (*sdktrace.TracerProvider, error) {
		provider, err := NewTracerProvider(context.Background())
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
		return provider, nil
	}),
	// Force construction even when nothing consumes the provider directly;
	// installation happens as a side effect of NewTracerProvider.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
