package main

import (
	"context"

	"go.uber.org/fx"

	"github.com/moorings/bulkhead/example/widget-import/internal/backend"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	inframetrics "github.com/moorings/bulkhead/pkg/bulk/infrastructure/metrics"
	"github.com/moorings/bulkhead/pkg/bulk/infrastructure/report"
	"github.com/moorings/bulkhead/pkg/bulk/infrastructure/repository/gormstore"
	"github.com/moorings/bulkhead/pkg/bulk/infrastructure/telemetry"
	"github.com/moorings/bulkhead/pkg/bulk/orchestrator"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

// GetApplicationOptions builds the uber-fx options for the example
// application.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, telemetry.Module)
	options = append(options, inframetrics.Module)
	options = append(options, gormstore.Module)
	options = append(options, report.Module)
	options = append(options, backend.Module)
	options = append(options, orchestrator.Module)
	options = append(options, fx.Invoke(fx.Annotate(startOperation, fx.ParamTags("", "", "", "", "", "", `name:"appCtx"`))))

	return options
}
