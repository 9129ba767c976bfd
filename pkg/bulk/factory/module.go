package factory

import (
	"go.uber.org/fx"
)

// Module provides the test-data factory registry.
var Module = fx.Options(
	fx.Provide(NewTestDataFactoryRegistry),
)
