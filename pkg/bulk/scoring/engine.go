// Package scoring evaluates operation plans and their outcomes against a
// fixed weighted rubric. Scoring is reporting-only: a bad score never blocks
// execution, the caller decides what to do with it.
package scoring

import (
	"sort"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
)

// Default per-category maxima. Deployments may override individual maxima
// through the scoring configuration; the rating bands scale with the total.
var defaultCategoryMaxima = map[model.Category]int{
	model.CategoryQueryEfficiency: 25,
	model.CategoryBulkSafety:      25,
	model.CategoryDataIntegrity:   20,
	model.CategoryFieldSecurity:   20,
	model.CategoryTestCoverage:    15,
	model.CategoryCleanup:         15,
	model.CategoryDocumentation:   10,
}

// ScoringEngine runs the rubric. It is stateless between evaluations; every
// Score call computes a fresh report from its inputs alone, so identical
// inputs always produce identical reports.
type ScoringEngine struct {
	rules    []Rule
	maxima   map[model.Category]int
	boundary int
}

// NewScoringEngine creates a ScoringEngine with the default rubric, applying
// any configured category maxima overrides.
func NewScoringEngine(scoringCfg *config.ScoringConfig, opCfg *config.OperationConfig) *ScoringEngine {
	maxima := make(map[model.Category]int, len(defaultCategoryMaxima))
	for c, max := range defaultCategoryMaxima {
		maxima[c] = max
	}
	if scoringCfg != nil {
		for name, max := range scoringCfg.CategoryMaxima {
			if max >= 0 {
				maxima[model.Category(name)] = max
			}
		}
	}
	return &ScoringEngine{
		rules:    defaultRules(),
		maxima:   maxima,
		boundary: opCfg.BatchBoundary,
	}
}

// Score evaluates the plan, and the outcome when one is supplied, returning
// a fresh report. Category scores are clamped to [0, category maximum]
// before summation; findings list every triggered rule in rubric order.
func (e *ScoringEngine) Score(plan *model.OperationPlan, outcome *Outcome) *model.ScoreReport {
	in := Input{Plan: plan, Outcome: outcome, BatchBoundary: e.boundary}

	raw := make(map[model.Category]int, len(e.maxima))
	var findings []model.Finding

	for _, rule := range e.rules {
		delta, message, triggered := rule.Evaluate(in)
		if !triggered {
			continue
		}
		raw[rule.Category] += delta
		findings = append(findings, model.Finding{
			RuleID:   rule.ID,
			Category: rule.Category,
			Delta:    delta,
			Message:  message,
		})
	}

	scores := make(map[model.Category]int, len(e.maxima))
	total := 0
	for _, category := range model.Categories {
		s := clamp(raw[category], 0, e.maxima[category])
		scores[category] = s
		total += s
	}

	return &model.ScoreReport{
		CategoryScores: scores,
		Total:          total,
		Rating:         e.rate(total),
		Findings:       findings,
	}
}

// MaxTotal returns the sum of the configured category maxima.
func (e *ScoringEngine) MaxTotal() int {
	total := 0
	for _, category := range model.Categories {
		total += e.maxima[category]
	}
	return total
}

// rate maps a total to its band. Band thresholds are fractions of the
// configured maximum (90/80/70/60 percent), so overridden maxima keep the
// bands meaningful.
func (e *ScoringEngine) rate(total int) model.Rating {
	max := e.MaxTotal()
	if max <= 0 {
		return model.RatingCritical
	}
	switch {
	case total*100 >= max*90:
		return model.RatingExcellent
	case total*100 >= max*80:
		return model.RatingVeryGood
	case total*100 >= max*70:
		return model.RatingGood
	case total*100 >= max*60:
		return model.RatingNeedsWork
	default:
		return model.RatingCritical
	}
}

// Rules returns the rubric in evaluation order, for reporting and tests.
func (e *ScoringEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
