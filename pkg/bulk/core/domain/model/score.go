package model

// Category is one independently scored dimension of operation quality.
type Category string

const (
	CategoryQueryEfficiency Category = "QUERY_EFFICIENCY"
	CategoryBulkSafety      Category = "BULK_SAFETY"
	CategoryDataIntegrity   Category = "DATA_INTEGRITY"
	CategoryFieldSecurity   Category = "FIELD_SECURITY"
	CategoryTestCoverage    Category = "TEST_COVERAGE"
	CategoryCleanup         Category = "CLEANUP_ISOLATION"
	CategoryDocumentation   Category = "DOCUMENTATION"
)

// Categories lists all rubric categories in reporting order.
var Categories = []Category{
	CategoryQueryEfficiency,
	CategoryBulkSafety,
	CategoryDataIntegrity,
	CategoryFieldSecurity,
	CategoryTestCoverage,
	CategoryCleanup,
	CategoryDocumentation,
}

// Rating is the banded quality rating derived from the total score. It is
// reporting-only; the orchestrator never blocks execution on it.
type Rating string

const (
	RatingExcellent Rating = "EXCELLENT"
	RatingVeryGood  Rating = "VERY_GOOD"
	RatingGood      Rating = "GOOD"
	RatingNeedsWork Rating = "NEEDS_WORK"
	RatingCritical  Rating = "CRITICAL"
)

// Finding is one triggered rubric rule with the score delta it contributed.
type Finding struct {
	RuleID   string   `json:"ruleId"`
	Category Category `json:"category"`
	Delta    int      `json:"delta"`
	Message  string   `json:"message"`
}

// ScoreReport is the result of one rubric evaluation. It is computed fresh
// per evaluation and never mutated in place.
type ScoreReport struct {
	CategoryScores map[Category]int `json:"categoryScores"`
	// Total is always the sum of CategoryScores, each clamped to
	// [0, category maximum] before summation.
	Total    int       `json:"total"`
	Rating   Rating    `json:"rating"`
	Findings []Finding `json:"findings"`
}
