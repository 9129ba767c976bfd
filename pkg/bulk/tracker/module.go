package tracker

import (
	"go.uber.org/fx"
)

// Module provides record provenance tracking and rollback management.
var Module = fx.Options(
	fx.Provide(NewRecordTracker),
	fx.Provide(NewRollbackManager),
)
