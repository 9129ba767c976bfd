// Command widget-import demonstrates a full orchestrated operation against
// an in-memory demo backend: it generates a boundary-crossing widget record
// set, inserts it, prints the scored report and rolls the insert back.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"go.uber.org/fx"

	"github.com/moorings/bulkhead/example/widget-import/internal/backend"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/factory"
	"github.com/moorings/bulkhead/pkg/bulk/orchestrator"
	"github.com/moorings/bulkhead/pkg/bulk/planner"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

// startOperation is an Fx hook that runs the demo operation on startup and
// requests shutdown when it finishes.
func startOperation(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	registry *factory.TestDataFactoryRegistry,
	demo *backend.DemoBackend,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in operation: %v", r)
					}
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				runDemo(appCtx, cfg, orch, registry, demo)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}

func runDemo(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator, registry *factory.TestDataFactoryRegistry, demo *backend.DemoBackend) {
	schema, err := demo.DescribeObject(ctx, "Widget")
	if err != nil {
		logger.Errorf("Failed to describe Widget: %v", err)
		return
	}

	edgeCases, err := factory.EdgeCasesFromProperties(cfg.Bulkhead.Factory.EdgeCases)
	if err != nil {
		logger.Errorf("Failed to bind factory edge case properties: %v", err)
		return
	}

	if err := registry.Register(&factory.FactorySpec{
		Object:     "Widget",
		Schema:     schema,
		NamePrefix: "DemoWidget",
		EdgeCases:  edgeCases,
	}); err != nil {
		logger.Errorf("Failed to register Widget factory: %v", err)
		return
	}

	// Count unspecified: bulk-validation purpose yields batch boundary + 1.
	records, err := registry.Generate("Widget", 0, factory.PurposeBulkValidation)
	if err != nil {
		logger.Errorf("Failed to generate widgets: %v", err)
		return
	}
	logger.Infof("Generated %d widget records.", len(records))

	result, err := orch.Run(ctx, planner.Intent{
		Kind:               "insert",
		Object:             "Widget",
		Records:            records,
		Purpose:            "Demonstrate boundary-crossing bulk insert with rollback",
		CleanupNamePattern: "DemoWidget%",
	})
	if err != nil {
		logger.Errorf("Operation failed: %v", err)
		return
	}

	report := result.Report
	logger.Infof("Run %s finished with status %s: created=%d failed=%d, score %d (%s).",
		report.RunID, report.Status, report.Counts.Created, report.Counts.Failed,
		report.ScoreReport.Total, report.ScoreReport.Rating)
	if report.CleanupPredicate != "" {
		logger.Infof("Cleanup predicate: %s", report.CleanupPredicate)
	}

	cleanup, err := orch.GenerateCleanupPredicate(ctx, model.CleanupPattern{ByTrackedIDs: true})
	if err != nil {
		logger.Warnf("Cleanup predicate generation failed: %v", err)
	} else {
		logger.Infof("Tracked-id cleanup predicate covers %d characters.", len(cleanup))
	}

	if err := orch.Rollback(ctx, result.Marker); err != nil {
		logger.Errorf("Rollback failed: %v", err)
		return
	}
	logger.Infof("Rollback complete, backend holds %d records.", demo.Size())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping the operation...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig)...)
	fxApp.Run()
	if fxApp.Err() != nil {
		logger.Fatalf("Application run failed: %v", fxApp.Err())
	}
	os.Exit(0)
}
