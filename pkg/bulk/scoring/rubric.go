package scoring

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// Input is everything a rule may inspect: the plan, the optional execution
// outcome, and the configured batch boundary. Rules never mutate it.
type Input struct {
	Plan    *model.OperationPlan
	Outcome *Outcome
	// BatchBoundary is the backend's internal batch-processing size, used by
	// coverage rules to recognize boundary-crossing record sets.
	BatchBoundary int
}

// Outcome carries the post-execution facts rules can score against. A nil
// Outcome means pre-execution scoring; outcome-dependent rules then do not
// trigger.
type Outcome struct {
	Results          []*model.BatchResult
	Traces           []*model.RecordTrace
	Marker           *model.RollbackMarker
	CleanupPredicate string
	// InputCount is the plan's original record count, for conservation checks.
	InputCount int
}

// AllOutcomes flattens the per-batch row outcomes.
func (o *Outcome) AllOutcomes() []model.RowOutcome {
	var out []model.RowOutcome
	for _, r := range o.Results {
		out = append(out, r.Outcomes...)
	}
	return out
}

// Rule is one rubric bullet: a pure function from Input to a score delta.
// Evaluate returns the delta, a human-readable message and whether the rule
// triggered at all; untriggered rules contribute nothing, not zero findings.
type Rule struct {
	ID       string
	Category model.Category
	Evaluate func(in Input) (delta int, message string, triggered bool)
}

// Sensitive-data patterns checked by the field security rules. Matching is
// over stringified field values.
var (
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	apiKeyPattern     = regexp.MustCompile(`(?i)\b(?:sk|pk|api|key|token)[_-][A-Za-z0-9]{16,}\b`)
)

var secretFieldFragments = []string{"password", "secret", "token", "apikey", "api_key", "private_key"}

// defaultRules returns the rubric. Each rule is independently testable; the
// engine only sums and clamps.
func defaultRules() []Rule {
	return []Rule{
		// Query efficiency. These rules only apply to plans carrying query
		// text; pure mutation plans legitimately score zero here.
		{
			ID:       "QE-01",
			Category: model.CategoryQueryEfficiency,
			Evaluate: func(in Input) (int, string, bool) {
				q := in.Plan.Query
				if q == "" {
					return 0, "", false
				}
				upper := strings.ToUpper(q)
				if strings.Contains(upper, "SELECT *") || strings.Contains(upper, "FIELDS(ALL)") {
					return -10, "query selects all fields instead of an explicit field list", true
				}
				return 10, "query declares an explicit field list", true
			},
		},
		{
			ID:       "QE-02",
			Category: model.CategoryQueryEfficiency,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Plan.Query == "" {
					return 0, "", false
				}
				if strings.Contains(strings.ToUpper(in.Plan.Query), "WHERE") {
					return 8, "query is filtered", true
				}
				return 0, "unfiltered query scans the whole object", true
			},
		},
		{
			ID:       "QE-03",
			Category: model.CategoryQueryEfficiency,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Plan.Query == "" {
					return 0, "", false
				}
				if strings.Contains(strings.ToUpper(in.Plan.Query), "LIMIT") {
					return 7, "query bounds its result set", true
				}
				return 0, "query has no result bound", true
			},
		},

		// Bulk safety.
		{
			ID:       "BS-01",
			Category: model.CategoryBulkSafety,
			Evaluate: func(in Input) (int, string, bool) {
				if !in.Plan.Kind.IsMutation() {
					return 0, "", false
				}
				count := in.Plan.RecordCount()
				if count > in.BatchBoundary {
					switch in.Plan.Kind {
					case model.OpBulkImport, model.OpTreeImport:
						return 10, "boundary-crossing record set routed through a bulk operation", true
					default:
						return -15, fmt.Sprintf("plan issues %d records through a per-record operation kind", count), true
					}
				}
				return 10, "record set stays below the batch boundary", true
			},
		},
		{
			ID:       "BS-02",
			Category: model.CategoryBulkSafety,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Plan.ChunkSizeHint > 0 {
					return 10, "plan declares an explicit chunk size", true
				}
				return 0, "", false
			},
		},
		{
			ID:       "BS-03",
			Category: model.CategoryBulkSafety,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Outcome == nil || in.Outcome.InputCount == 0 {
					return 0, "", false
				}
				failed := 0
				for _, o := range in.Outcome.AllOutcomes() {
					if !o.Success {
						failed++
					}
				}
				if failed*2 > in.Outcome.InputCount {
					return -15, fmt.Sprintf("%d of %d rows failed", failed, in.Outcome.InputCount), true
				}
				return 5, "failure rate within tolerance", true
			},
		},

		// Data integrity.
		{
			ID:       "DI-01",
			Category: model.CategoryDataIntegrity,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Plan.Kind != model.OpUpsert {
					return 0, "", false
				}
				if in.Plan.ExternalIDField != "" {
					return 10, "upsert matches on an external id field", true
				}
				return -10, "upsert without an external id field is not idempotent", true
			},
		},
		{
			ID:       "DI-02",
			Category: model.CategoryDataIntegrity,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Outcome == nil {
					return 0, "", false
				}
				counts := model.CountOutcomes(in.Plan.Kind, in.Outcome.AllOutcomes())
				if counts.Total() == in.Outcome.InputCount {
					return 5, "row counts conserve the input record count", true
				}
				return -10, fmt.Sprintf("counts total %d but %d records went in", counts.Total(), in.Outcome.InputCount), true
			},
		},
		{
			ID:       "DI-03",
			Category: model.CategoryDataIntegrity,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Outcome == nil || !in.Plan.Kind.IsMutation() {
					return 0, "", false
				}
				if len(in.Outcome.Traces) > 0 {
					return 5, "committed rows are provenance-tracked", true
				}
				return 0, "no provenance traces recorded for a mutation", true
			},
		},
		{
			ID:       "DI-04",
			Category: model.CategoryDataIntegrity,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Outcome == nil {
					return 0, "", false
				}
				for _, o := range in.Outcome.AllOutcomes() {
					if o.ErrorCode == "INVALID_REFERENCE" {
						return -10, "broken relationship references observed in outcomes", true
					}
				}
				return 0, "", false
			},
		},

		// Field security.
		{
			ID:       "FS-01",
			Category: model.CategoryFieldSecurity,
			Evaluate: func(in Input) (int, string, bool) {
				field, ok := findSensitiveValue(in.Plan.Records)
				if ok {
					return -10, fmt.Sprintf("field %q carries a recognized sensitive-data pattern", field), true
				}
				return 12, "no sensitive-data patterns detected in record values", true
			},
		},
		{
			ID:       "FS-02",
			Category: model.CategoryFieldSecurity,
			Evaluate: func(in Input) (int, string, bool) {
				field, ok := findSecretField(in.Plan.Records)
				if ok {
					return -8, fmt.Sprintf("field %q looks like a credential field", field), true
				}
				return 8, "no credential-looking field names in records", true
			},
		},

		// Test-pattern coverage.
		{
			ID:       "TC-01",
			Category: model.CategoryTestCoverage,
			Evaluate: func(in Input) (int, string, bool) {
				if !in.Plan.Kind.IsMutation() || in.BatchBoundary <= 0 {
					return 0, "", false
				}
				if in.Plan.RecordCount() > in.BatchBoundary {
					return 8, "record set crosses the batch-processing boundary", true
				}
				return 0, "", false
			},
		},
		{
			ID:       "TC-02",
			Category: model.CategoryTestCoverage,
			Evaluate: func(in Input) (int, string, bool) {
				if hasFieldVariety(in.Plan.Records) {
					return 7, "record set varies its field shapes", true
				}
				return 0, "", false
			},
		},

		// Cleanup and isolation.
		{
			ID:       "CL-01",
			Category: model.CategoryCleanup,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Outcome != nil && in.Outcome.CleanupPredicate != "" {
					return 5, "cleanup predicate generated", true
				}
				return 0, "", false
			},
		},
		{
			ID:       "CL-02",
			Category: model.CategoryCleanup,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Outcome != nil && in.Outcome.Marker != nil {
					return 5, "rollback marker taken before execution", true
				}
				return 0, "", false
			},
		},
		{
			ID:       "CL-03",
			Category: model.CategoryCleanup,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Plan.CleanupNamePattern != "" {
					return 5, "plan names a cleanup pattern for its records", true
				}
				return 0, "", false
			},
		},

		// Documentation.
		{
			ID:       "DOC-01",
			Category: model.CategoryDocumentation,
			Evaluate: func(in Input) (int, string, bool) {
				if in.Plan.Purpose != "" {
					return 6, "plan documents its purpose", true
				}
				return 0, "", false
			},
		},
		{
			ID:       "DOC-02",
			Category: model.CategoryDocumentation,
			Evaluate: func(in Input) (int, string, bool) {
				if len(strings.TrimSpace(in.Plan.Purpose)) >= 20 {
					return 4, "purpose is substantive", true
				}
				return 0, "", false
			},
		},
	}
}

// findSensitiveValue scans stringified record values for sensitive-data
// patterns and returns the first offending field name. Fields are scanned in
// sorted order so finding messages are reproducible across runs.
func findSensitiveValue(records []model.Record) (string, bool) {
	for _, r := range records {
		for _, field := range sortedFieldNames(r) {
			s, ok := r[field].(string)
			if !ok {
				continue
			}
			if ssnPattern.MatchString(s) || creditCardPattern.MatchString(s) || apiKeyPattern.MatchString(s) {
				return field, true
			}
		}
	}
	return "", false
}

// findSecretField reports the first field, in sorted order, whose name
// suggests it carries a credential.
func findSecretField(records []model.Record) (string, bool) {
	for _, r := range records {
		for _, field := range sortedFieldNames(r) {
			lower := strings.ToLower(field)
			for _, fragment := range secretFieldFragments {
				if strings.Contains(lower, fragment) {
					return field, true
				}
			}
		}
	}
	return "", false
}

func sortedFieldNames(r model.Record) []string {
	fields := make([]string, 0, len(r))
	for field := range r {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// hasFieldVariety reports whether the record set mixes field shapes, a cheap
// signal that edge cases (null optionals) were injected.
func hasFieldVariety(records []model.Record) bool {
	if len(records) < 2 {
		return false
	}
	first := len(records[0])
	for _, r := range records[1:] {
		if len(r) != first {
			return true
		}
	}
	return false
}
