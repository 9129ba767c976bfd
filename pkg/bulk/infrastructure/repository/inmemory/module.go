// Package inmemory integrates the in-memory trace store into the
// application's dependency graph using Fx.
package inmemory

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
)

// Module is an Fx module that provides InMemoryTraceStore as a
// port.TraceStore interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryTraceStore,
			fx.As(new(port.TraceStore)),
		),
	),
)
