package test

import (
	"context"
	"fmt"

	"github.com/moorings/bulkhead/pkg/bulk/core/application/port"
	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// WidgetSchema returns a schema with a required Name, an optional
// Description and a Quantity field, enough for most planner and engine
// tests.
func WidgetSchema() *model.ObjectSchema {
	return &model.ObjectSchema{
		Name: "Widget",
		Fields: []model.FieldSchema{
			{Name: "Name", Type: "string", Required: true, MaxLength: 80},
			{Name: "Description", Type: "string"},
			{Name: "Quantity", Type: "int"},
			{Name: "ExternalKey", Type: "string"},
			{Name: "Id", Type: "string"},
		},
	}
}

// GadgetSchema returns a schema with a required relationship to Widget.
func GadgetSchema() *model.ObjectSchema {
	return &model.ObjectSchema{
		Name: "Gadget",
		Fields: []model.FieldSchema{
			{Name: "Name", Type: "string", Required: true},
			{Name: "WidgetId", Type: "string", Required: true, IsRelationship: true, RelatedObject: "Widget"},
		},
	}
}

// WidgetRecords builds count records satisfying WidgetSchema.
func WidgetRecords(count int) []model.Record {
	records := make([]model.Record, count)
	for i := range records {
		records[i] = model.Record{
			"Name":     fmt.Sprintf("Widget %d", i+1),
			"Quantity": i + 1,
		}
	}
	return records
}

// InsertPlan builds a validated-shape insert plan over the given records.
func InsertPlan(object string, records []model.Record) *model.OperationPlan {
	return &model.OperationPlan{
		ID:      model.NewID(),
		Kind:    model.OpInsert,
		Object:  object,
		Records: records,
	}
}

// OperationConfig returns a small, fast configuration for tests: tight
// retries, immediate polling, modest quotas.
func OperationConfig() *config.OperationConfig {
	return &config.OperationConfig{
		SyncThreshold: 200,
		WorkerCount:   4,
		BatchBoundary: 250,
		Limits: config.LimitsConfig{
			MaxRowsPerBatch:  10000,
			MaxBytesPerBatch: 10 * 1024 * 1024,
			MaxConcurrency:   4,
		},
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 1,
			MaxInterval:     5,
			Factor:          2.0,
		},
		Polling: config.PollingConfig{
			InitialInterval: 1,
			MaxInterval:     5,
			Factor:          1.5,
			WaitBudget:      2_000,
		},
	}
}

// StaticSchemaProvider serves schemas from a map.
type StaticSchemaProvider struct {
	Schemas map[string]*model.ObjectSchema
}

// NewStaticSchemaProvider creates a provider over the given schemas.
func NewStaticSchemaProvider(schemas ...*model.ObjectSchema) *StaticSchemaProvider {
	m := make(map[string]*model.ObjectSchema, len(schemas))
	for _, s := range schemas {
		m[s.Name] = s
	}
	return &StaticSchemaProvider{Schemas: m}
}

// DescribeObject returns the schema or an error for unknown objects.
func (p *StaticSchemaProvider) DescribeObject(ctx context.Context, name string) (*model.ObjectSchema, error) {
	s, ok := p.Schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown object %q", name)
	}
	return s, nil
}

var _ port.SchemaProvider = (*StaticSchemaProvider)(nil)

// CollectingSink keeps written reports in memory.
type CollectingSink struct {
	Reports []*model.OperationReport
}

// Write appends the report.
func (s *CollectingSink) Write(ctx context.Context, report *model.OperationReport) error {
	s.Reports = append(s.Reports, report)
	return nil
}

var _ port.ReportSink = (*CollectingSink)(nil)
