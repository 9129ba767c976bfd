package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/support/util/exception"
)

// GenerateCleanupPredicate builds a deletion predicate for out-of-band
// cleanup, used when in-process rollback is unavailable (for example after
// the session that held the trace log has ended). Set selectors are ANDed;
// at least one must be set.
//
// The predicate is query-language-agnostic filter text; the excluded
// transport layer embeds it into whatever deletion statement the backend
// accepts.
func (t *RecordTracker) GenerateCleanupPredicate(ctx context.Context, pattern model.CleanupPattern) (string, error) {
	var clauses []string

	if pattern.ByTrackedIDs {
		traces, err := t.store.ListSince(ctx, 0)
		if err != nil {
			return "", exception.New(moduleName, exception.ClassInternal, "failed to load traces for cleanup predicate", err)
		}
		ids := trackedCreatedIDs(traces)
		if len(ids) == 0 {
			return "", exception.Newf(moduleName, exception.ClassValidation, "no tracked record ids to clean up")
		}
		quoted := make([]string, len(ids))
		for i, id := range ids {
			quoted[i] = "'" + escapeLiteral(id) + "'"
		}
		clauses = append(clauses, fmt.Sprintf("Id IN (%s)", strings.Join(quoted, ", ")))
	}

	if pattern.NamePattern != "" {
		clauses = append(clauses, fmt.Sprintf("Name LIKE '%s'", escapeLiteral(pattern.NamePattern)))
	}

	if !pattern.CreatedAfter.IsZero() {
		clauses = append(clauses, fmt.Sprintf("CreatedDate >= %s", pattern.CreatedAfter.UTC().Format(time.RFC3339)))
	}
	if !pattern.CreatedBefore.IsZero() {
		clauses = append(clauses, fmt.Sprintf("CreatedDate <= %s", pattern.CreatedBefore.UTC().Format(time.RFC3339)))
	}

	if len(clauses) == 0 {
		return "", exception.Newf(moduleName, exception.ClassValidation, "cleanup pattern selects nothing")
	}
	return strings.Join(clauses, " AND "), nil
}

// trackedCreatedIDs returns the distinct ids of created, not-yet-rolled-back
// records. Updates and deletes are excluded: deleting them out-of-band would
// destroy data the operation did not create.
func trackedCreatedIDs(traces []*model.RecordTrace) []string {
	seen := make(map[string]bool)
	var out []string
	for _, trace := range traces {
		if trace.RolledBack || !trace.Kind.IsMutation() {
			continue
		}
		switch trace.Kind {
		case model.OpInsert, model.OpUpsert, model.OpBulkImport, model.OpTreeImport:
			if !seen[trace.RecordID] {
				seen[trace.RecordID] = true
				out = append(out, trace.RecordID)
			}
		}
	}
	return out
}

// escapeLiteral doubles single quotes so generated predicates stay parseable.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
