package backend

import (
	"go.uber.org/fx"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
)

// Module provides the demo backend as both Executor and SchemaProvider.
var Module = fx.Options(
	fx.Provide(NewDemoBackend),
	fx.Provide(func(b *DemoBackend) port.Executor { return b }),
	fx.Provide(func(b *DemoBackend) port.SchemaProvider { return b }),
)
