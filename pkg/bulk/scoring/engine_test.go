package scoring_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moorings/bulkhead/pkg/bulk/core/config"
	"github.com/moorings/bulkhead/pkg/bulk/core/domain/model"
	"github.com/moorings/bulkhead/pkg/bulk/scoring"
	bulktest "github.com/moorings/bulkhead/pkg/bulk/test"
)

func newEngine() *scoring.ScoringEngine {
	return scoring.NewScoringEngine(&config.ScoringConfig{}, bulktest.OperationConfig())
}

func TestMaxTotalDefaults(t *testing.T) {
	e := newEngine()
	assert.Equal(t, 130, e.MaxTotal())
}

func TestScoreIsDeterministic(t *testing.T) {
	e := newEngine()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(300))
	plan.Purpose = "Verify boundary-crossing insert behaviour"

	first := e.Score(plan, nil)
	second := e.Score(plan, nil)

	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.CategoryScores, second.CategoryScores)
	assert.Equal(t, first.Findings, second.Findings)
}

func TestTotalWithinBounds(t *testing.T) {
	e := newEngine()
	plans := []*model.OperationPlan{
		bulktest.InsertPlan("Widget", bulktest.WidgetRecords(1)),
		bulktest.InsertPlan("Widget", bulktest.WidgetRecords(500)),
		{Kind: model.OpQuery, Object: "Widget", Query: "SELECT Id FROM Widget WHERE Name LIKE 'x%' LIMIT 10"},
	}
	for _, plan := range plans {
		report := e.Score(plan, nil)
		assert.GreaterOrEqual(t, report.Total, 0)
		assert.LessOrEqual(t, report.Total, e.MaxTotal())
	}
}

func TestFilteredExplicitQueryScoresQueryEfficiency(t *testing.T) {
	e := newEngine()
	plan := &model.OperationPlan{
		Kind:   model.OpQuery,
		Object: "Widget",
		Query:  "SELECT Id, Name FROM Widget WHERE Name LIKE 'LoadTest%' LIMIT 100",
	}

	report := e.Score(plan, nil)
	assert.Equal(t, 25, report.CategoryScores[model.CategoryQueryEfficiency])
}

func TestSelectStarPenalized(t *testing.T) {
	e := newEngine()
	plan := &model.OperationPlan{
		Kind:   model.OpQuery,
		Object: "Widget",
		Query:  "SELECT * FROM Widget",
	}

	report := e.Score(plan, nil)
	// The negative raw score clamps at zero.
	assert.Equal(t, 0, report.CategoryScores[model.CategoryQueryEfficiency])

	found := false
	for _, f := range report.Findings {
		if f.RuleID == "QE-01" {
			found = true
			assert.Negative(t, f.Delta)
		}
	}
	assert.True(t, found)
}

func TestMutationPlanSkipsQueryRules(t *testing.T) {
	e := newEngine()
	report := e.Score(bulktest.InsertPlan("Widget", bulktest.WidgetRecords(5)), nil)

	assert.Equal(t, 0, report.CategoryScores[model.CategoryQueryEfficiency])
	for _, f := range report.Findings {
		assert.False(t, strings.HasPrefix(f.RuleID, "QE-"))
	}
}

func TestBoundaryCrossingPerRecordKindPenalized(t *testing.T) {
	e := newEngine()
	// 300 records through a per-record insert, boundary 250.
	report := e.Score(bulktest.InsertPlan("Widget", bulktest.WidgetRecords(300)), nil)

	var bs01 *model.Finding
	for i, f := range report.Findings {
		if f.RuleID == "BS-01" {
			bs01 = &report.Findings[i]
		}
	}
	assert.NotNil(t, bs01)
	assert.Equal(t, -15, bs01.Delta)

	// The same record set through a bulk kind is rewarded instead.
	bulkPlan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(300))
	bulkPlan.Kind = model.OpBulkImport
	bulkReport := e.Score(bulkPlan, nil)
	for _, f := range bulkReport.Findings {
		if f.RuleID == "BS-01" {
			assert.Equal(t, 10, f.Delta)
		}
	}
}

func TestUpsertWithoutExternalIDPenalized(t *testing.T) {
	e := newEngine()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(5))
	plan.Kind = model.OpUpsert

	report := e.Score(plan, nil)
	assert.Equal(t, 0, report.CategoryScores[model.CategoryDataIntegrity])

	plan.ExternalIDField = "ExternalKey"
	report = e.Score(plan, nil)
	assert.Equal(t, 10, report.CategoryScores[model.CategoryDataIntegrity])
}

func TestSensitiveValuePenalized(t *testing.T) {
	e := newEngine()
	records := []model.Record{{"Name": "ok", "Notes": "SSN 123-45-6789"}}
	report := e.Score(bulktest.InsertPlan("Widget", records), nil)

	assert.Equal(t, 0, report.CategoryScores[model.CategoryFieldSecurity])

	clean := e.Score(bulktest.InsertPlan("Widget", bulktest.WidgetRecords(2)), nil)
	assert.Equal(t, 20, clean.CategoryScores[model.CategoryFieldSecurity])
}

func TestCredentialFieldNamePenalized(t *testing.T) {
	e := newEngine()
	records := []model.Record{{"Name": "ok", "ApiKey": "abc"}}
	report := e.Score(bulktest.InsertPlan("Widget", records), nil)

	for _, f := range report.Findings {
		if f.RuleID == "FS-02" {
			assert.Equal(t, -8, f.Delta)
		}
	}
}

func TestFieldSecurityFindingsNameStableField(t *testing.T) {
	e := newEngine()
	// Several fields offend; every evaluation must name the same one.
	records := []model.Record{{
		"Alpha":        "123-45-6789",
		"Zulu":         "123-45-6789",
		"AccessToken":  "x",
		"UserPassword": "y",
	}}
	plan := bulktest.InsertPlan("Widget", records)

	for i := 0; i < 20; i++ {
		report := e.Score(plan, nil)
		for _, f := range report.Findings {
			switch f.RuleID {
			case "FS-01":
				assert.Contains(t, f.Message, `"Alpha"`)
			case "FS-02":
				assert.Contains(t, f.Message, `"AccessToken"`)
			}
		}
	}
}

func TestOutcomeRulesNeedAnOutcome(t *testing.T) {
	e := newEngine()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(3))

	pre := e.Score(plan, nil)
	for _, f := range pre.Findings {
		assert.NotEqual(t, "BS-03", f.RuleID)
		assert.NotEqual(t, "DI-02", f.RuleID)
	}

	outcomes := make([]model.RowOutcome, 3)
	for i := range outcomes {
		outcomes[i] = model.RowOutcome{RecordID: "w", Success: true, Created: true}
	}
	post := e.Score(plan, &scoring.Outcome{
		Results:    []*model.BatchResult{{Outcomes: outcomes}},
		InputCount: 3,
	})
	assert.Greater(t, post.Total, pre.Total)
}

func TestHighFailureRatePenalized(t *testing.T) {
	e := newEngine()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(4))

	outcomes := []model.RowOutcome{
		{Success: false, ErrorCode: "VALIDATION"},
		{Success: false, ErrorCode: "VALIDATION"},
		{Success: false, ErrorCode: "VALIDATION"},
		{RecordID: "w", Success: true, Created: true},
	}
	report := e.Score(plan, &scoring.Outcome{
		Results:    []*model.BatchResult{{Outcomes: outcomes}},
		InputCount: 4,
	})
	for _, f := range report.Findings {
		if f.RuleID == "BS-03" {
			assert.Equal(t, -15, f.Delta)
		}
	}
}

func TestCleanupAndDocumentationRules(t *testing.T) {
	e := newEngine()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(3))
	plan.Purpose = "Seed widgets for the nightly import regression run"
	plan.CleanupNamePattern = "LoadTest%"

	report := e.Score(plan, &scoring.Outcome{
		CleanupPredicate: "Name LIKE 'LoadTest%'",
		Marker:           &model.RollbackMarker{},
		InputCount:       3,
	})

	assert.Equal(t, 15, report.CategoryScores[model.CategoryCleanup])
	assert.Equal(t, 10, report.CategoryScores[model.CategoryDocumentation])
}

func TestZeroScoredScenario(t *testing.T) {
	e := newEngine()
	plan := bulktest.InsertPlan("Widget", bulktest.WidgetRecords(3))

	report := e.Score(plan, nil)
	assert.Equal(t, 0, report.CategoryScores[model.CategoryCleanup])
	assert.Equal(t, 0, report.CategoryScores[model.CategoryDocumentation])
}

func TestCategoryMaximaOverrides(t *testing.T) {
	e := scoring.NewScoringEngine(&config.ScoringConfig{
		CategoryMaxima: map[string]int{string(model.CategoryFieldSecurity): 5},
	}, bulktest.OperationConfig())

	assert.Equal(t, 115, e.MaxTotal())

	report := e.Score(bulktest.InsertPlan("Widget", bulktest.WidgetRecords(2)), nil)
	assert.Equal(t, 5, report.CategoryScores[model.CategoryFieldSecurity])
}

func TestRulesSortedByID(t *testing.T) {
	e := newEngine()
	rules := e.Rules()
	assert.NotEmpty(t, rules)
	for i := 1; i < len(rules); i++ {
		assert.Less(t, rules[i-1].ID, rules[i].ID)
	}
}
