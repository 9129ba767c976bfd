// Package planner turns high-level operation intents into validated,
// normalized operation plans. Validation is fail-fast: a plan that comes out
// of the planner is safe to hand to the batcher without further schema
// checks.
package planner

import (
	"strings"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/logger"
)

const moduleName = "planner"

// Intent is a high-level description of an operation before validation.
type Intent struct {
	// Kind names the operation; free-form casing is normalized.
	Kind string
	// Object is the target object name.
	Object string
	// Records is the candidate record set for mutating operations.
	Records []model.Record
	// Query is the query text for query/export operations.
	Query string
	// ExternalIDField is the match field for upserts.
	ExternalIDField string
	// RecordCount requests a synthetic record count when Records is nil.
	// Zero means unspecified.
	RecordCount int
	// BulkTrigger marks the intent as a bulk-processing validation run; an
	// unspecified RecordCount then resolves to one above the batch boundary.
	BulkTrigger bool
	// ChunkSizeHint is a caller preference for batch sizing.
	ChunkSizeHint int
	// Purpose documents why the operation runs.
	Purpose string
	// CleanupNamePattern enables name-based cleanup predicates.
	CleanupNamePattern string
}

// RequestPlanner validates intents against object schemas and produces
// immutable operation plans.
type RequestPlanner struct {
	cfg *config.OperationConfig
}

// NewRequestPlanner creates a new RequestPlanner.
func NewRequestPlanner(cfg *config.OperationConfig) *RequestPlanner {
	return &RequestPlanner{cfg: cfg}
}

// NormalizeKind maps a free-form operation name onto an OperationKind.
// Unrecognized names return the empty kind.
func NormalizeKind(kind string) model.OperationKind {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case "QUERY", "SELECT":
		return model.OpQuery
	case "INSERT", "CREATE":
		return model.OpInsert
	case "UPDATE":
		return model.OpUpdate
	case "DELETE":
		return model.OpDelete
	case "UPSERT":
		return model.OpUpsert
	case "BULK_IMPORT", "BULKIMPORT", "IMPORT":
		return model.OpBulkImport
	case "BULK_EXPORT", "BULKEXPORT", "EXPORT":
		return model.OpBulkExport
	case "TREE_IMPORT", "TREEIMPORT":
		return model.OpTreeImport
	default:
		return model.OperationKind("")
	}
}

// Plan validates the intent against the schema and returns a normalized
// OperationPlan. Validation failures name the offending field and record
// index so the caller can fix the intent rather than re-running blind.
func (p *RequestPlanner) Plan(intent Intent, schema *model.ObjectSchema) (*model.OperationPlan, error) {
	kind := NormalizeKind(intent.Kind)
	if !kind.IsValid() {
		return nil, exception.Newf(moduleName, exception.ClassValidation, "unknown operation kind %q", intent.Kind)
	}
	if schema == nil {
		return nil, exception.Newf(moduleName, exception.ClassValidation, "no schema supplied for object %q", intent.Object)
	}
	if intent.Object == "" || intent.Object != schema.Name {
		return nil, exception.Newf(moduleName, exception.ClassSchemaMismatch,
			"intent targets object %q but schema describes %q", intent.Object, schema.Name)
	}

	switch kind {
	case model.OpQuery, model.OpBulkExport:
		if strings.TrimSpace(intent.Query) == "" {
			return nil, exception.Newf(moduleName, exception.ClassValidation, "operation %s requires query text", kind)
		}
	case model.OpUpsert:
		if intent.ExternalIDField == "" {
			return nil, exception.Newf(moduleName, exception.ClassSchemaMismatch,
				"upsert on %q requires a declared external-id field", intent.Object)
		}
		if _, ok := schema.Field(intent.ExternalIDField); !ok {
			return nil, exception.Newf(moduleName, exception.ClassSchemaMismatch,
				"external-id field %q does not exist on object %q", intent.ExternalIDField, intent.Object).
				WithField(intent.ExternalIDField)
		}
	}

	if err := p.validateRecords(kind, intent.Records, schema); err != nil {
		return nil, err
	}

	plan := &model.OperationPlan{
		ID:                 model.NewID(),
		Kind:               kind,
		Object:             intent.Object,
		Records:            intent.Records,
		Query:              intent.Query,
		ExternalIDField:    intent.ExternalIDField,
		ChunkSizeHint:      intent.ChunkSizeHint,
		Purpose:            strings.TrimSpace(intent.Purpose),
		CleanupNamePattern: intent.CleanupNamePattern,
		CreateTime:         time.Now(),
	}

	logger.Debugf("Planned %s operation on %q: %d records.", plan.Kind, plan.Object, plan.RecordCount())
	return plan, nil
}

// ResolveRecordCount resolves a relative record count for intents with no
// explicit record set. A bulk-trigger intent with an unspecified count
// resolves to one above the configured batch-processing boundary, so the
// backend's internal batch handling is actually crossed.
func (p *RequestPlanner) ResolveRecordCount(intent Intent) int {
	if intent.RecordCount > 0 {
		return intent.RecordCount
	}
	if intent.BulkTrigger {
		return p.cfg.BatchBoundary + 1
	}
	return 1
}

// validateRecords checks every record of a mutating intent against the
// schema: referenced fields must exist, and Insert/Upsert must carry all
// schema-required fields.
func (p *RequestPlanner) validateRecords(kind model.OperationKind, records []model.Record, schema *model.ObjectSchema) error {
	if !kind.IsMutation() {
		return nil
	}

	checkRequired := kind == model.OpInsert || kind == model.OpUpsert ||
		kind == model.OpBulkImport || kind == model.OpTreeImport

	for i, record := range records {
		for field := range record {
			if _, ok := schema.Field(field); !ok {
				return exception.Newf(moduleName, exception.ClassValidation,
					"field %q does not exist on object %q", field, schema.Name).
					WithField(field).WithRecordIndex(i)
			}
		}
		if !checkRequired {
			continue
		}
		for _, required := range schema.RequiredFields() {
			if !record.Has(required) {
				return exception.Newf(moduleName, exception.ClassValidation,
					"missing required field %q on object %q", required, schema.Name).
					WithField(required).WithRecordIndex(i)
			}
		}
	}
	return nil
}
