// Package gormstore integrates the database-backed trace store into the
// application's dependency graph using Fx.
package gormstore

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
)

// Module is an Fx module that provides GormTraceStore as a port.TraceStore
// interface and closes it on application shutdown.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewGormTraceStore,
			fx.As(new(port.TraceStore)),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, store port.TraceStore) {
		lc.Append(fx.StopHook(store.Close))
	}),
)
