// Package factory generates synthetic record sets for registered object
// shapes. Generation is deterministic: the same spec and count always yield
// the same records, so tests built on factory output are reproducible.
package factory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

const moduleName = "factory"

// PurposeBulkValidation marks a generation run meant to exercise the
// backend's bulk-processing path. With an unspecified count it yields one
// record more than the batch-processing boundary.
const PurposeBulkValidation = "bulk-validation"

// defaultBoundaryStringLength is used for boundary-length strings when the
// field schema declares no maximum.
const defaultBoundaryStringLength = 255

// ParentSupplier resolves a relationship field to the id of an already
// created parent record. The second return reports whether a parent exists.
type ParentSupplier func(relatedObject string) (string, bool)

// FieldGenerator produces the value for one field of the i-th record.
type FieldGenerator func(i int) interface{}

// EdgeCaseConfig selects which fraction of generated records receive
// edge-case values. Fractions are applied deterministically by record index,
// not randomly, so regeneration is stable. Zero fractions disable the
// corresponding injection.
type EdgeCaseConfig struct {
	// NullOptionalFraction of records omit their optional fields entirely.
	NullOptionalFraction float64 `yaml:"null_optional_fraction"`
	// BoundaryStringFraction of records carry maximum-length string values.
	BoundaryStringFraction float64 `yaml:"boundary_string_fraction"`
	// OutOfRangeFraction of records carry extreme but schema-valid values.
	OutOfRangeFraction float64 `yaml:"out_of_range_fraction"`
}

// FactorySpec describes how to build records for one object.
type FactorySpec struct {
	Object string
	// Schema drives required-field satisfaction and relationship binding.
	Schema *model.ObjectSchema
	// NamePrefix seeds generated Name values so cleanup patterns can match
	// them later. Empty means the object name is used.
	NamePrefix string
	// Overrides replace the default generator for named fields.
	Overrides map[string]FieldGenerator
	// Parents resolves required relationship fields to existing parent ids.
	Parents   ParentSupplier
	EdgeCases EdgeCaseConfig
}

// TestDataFactoryRegistry holds factory specs keyed by object name.
type TestDataFactoryRegistry struct {
	mu       sync.RWMutex
	specs    map[string]*FactorySpec
	boundary int
}

// NewTestDataFactoryRegistry creates a registry using the configured batch
// boundary for default bulk-validation counts.
func NewTestDataFactoryRegistry(cfg *config.OperationConfig) *TestDataFactoryRegistry {
	return &TestDataFactoryRegistry{
		specs:    make(map[string]*FactorySpec),
		boundary: cfg.BatchBoundary,
	}
}

// Register stores a spec for its object, replacing any previous registration.
func (r *TestDataFactoryRegistry) Register(spec *FactorySpec) error {
	if spec == nil || spec.Object == "" {
		return exception.Newf(moduleName, exception.ClassValidation, "factory spec needs an object name")
	}
	if spec.Schema == nil {
		return exception.Newf(moduleName, exception.ClassValidation, "factory spec for %s needs a schema", spec.Object)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Object] = spec
	return nil
}

// Spec returns the registered spec for the object.
func (r *TestDataFactoryRegistry) Spec(object string) (*FactorySpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[object]
	return spec, ok
}

// Generate builds count records for the object. A non-positive count with a
// bulk-validation purpose defaults to the batch boundary plus one, so the
// record set crosses the backend's internal batch size; otherwise a
// non-positive count is an error.
func (r *TestDataFactoryRegistry) Generate(object string, count int, purpose string) ([]model.Record, error) {
	spec, ok := r.Spec(object)
	if !ok {
		return nil, exception.Newf(moduleName, exception.ClassValidation, "no factory registered for object %s", object)
	}

	if count <= 0 {
		if purpose != PurposeBulkValidation {
			return nil, exception.Newf(moduleName, exception.ClassValidation,
				"record count must be positive (or use purpose %q for a boundary-crossing default)", PurposeBulkValidation)
		}
		count = r.boundary + 1
	}

	records := make([]model.Record, 0, count)
	for i := 0; i < count; i++ {
		record, err := r.buildRecord(spec, i)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// buildRecord assembles the i-th record: required fields always present,
// optional fields subject to edge-case injection, relationships resolved
// through the parent supplier.
func (r *TestDataFactoryRegistry) buildRecord(spec *FactorySpec, i int) (model.Record, error) {
	record := make(model.Record)
	nullOptionals := hitsFraction(i, spec.EdgeCases.NullOptionalFraction)

	for _, field := range spec.Schema.Fields {
		if !field.Required && nullOptionals {
			continue
		}

		if gen, ok := spec.Overrides[field.Name]; ok {
			record[field.Name] = gen(i)
			continue
		}

		if field.IsRelationship {
			if !field.Required {
				continue
			}
			if spec.Parents == nil {
				return nil, unresolvedRelationship(spec.Object, field, i)
			}
			parentID, ok := spec.Parents(field.RelatedObject)
			if !ok {
				return nil, unresolvedRelationship(spec.Object, field, i)
			}
			record[field.Name] = parentID
			continue
		}

		record[field.Name] = r.defaultValue(spec, field, i)
	}
	return record, nil
}

// defaultValue produces a deterministic value for the field, honouring the
// edge-case toggles for this record index.
func (r *TestDataFactoryRegistry) defaultValue(spec *FactorySpec, field model.FieldSchema, i int) interface{} {
	switch strings.ToLower(field.Type) {
	case "string", "text", "textarea":
		if hitsFraction(i, spec.EdgeCases.BoundaryStringFraction) {
			length := field.MaxLength
			if length <= 0 {
				length = defaultBoundaryStringLength
			}
			return strings.Repeat("x", length)
		}
		if field.Name == "Name" {
			prefix := spec.NamePrefix
			if prefix == "" {
				prefix = spec.Object
			}
			return fmt.Sprintf("%s %d", prefix, i+1)
		}
		return fmt.Sprintf("%s %s %d", spec.Object, field.Name, i+1)
	case "int", "integer", "number", "double", "currency":
		if hitsFraction(i, spec.EdgeCases.OutOfRangeFraction) {
			return 2147483647
		}
		return i + 1
	case "boolean", "checkbox":
		return i%2 == 0
	case "picklist":
		if len(field.PicklistValues) == 0 {
			return ""
		}
		if hitsFraction(i, spec.EdgeCases.OutOfRangeFraction) {
			// Last picklist entry, still schema-valid but rarely exercised.
			return field.PicklistValues[len(field.PicklistValues)-1]
		}
		return field.PicklistValues[i%len(field.PicklistValues)]
	default:
		return fmt.Sprintf("%s-%d", field.Name, i+1)
	}
}

func unresolvedRelationship(object string, field model.FieldSchema, i int) error {
	return exception.Newf(moduleName, exception.ClassSchemaMismatch,
		"no parent %s available for relationship field %s on %s",
		field.RelatedObject, field.Name, object).
		WithField(field.Name).
		WithRecordIndex(i)
}

// hitsFraction deterministically selects roughly fraction of record indexes.
// With fraction f > 0, every floor(1/f)-th record hits.
func hitsFraction(i int, fraction float64) bool {
	if fraction <= 0 {
		return false
	}
	if fraction >= 1 {
		return true
	}
	stride := int(1 / fraction)
	if stride < 1 {
		stride = 1
	}
	return i%stride == stride-1
}
