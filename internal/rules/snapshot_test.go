package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/model"
)

func patternRule(id int, scope, pattern string, priority int, confidence float64) model.PatternRule {
	return model.PatternRule{
		ID:         id,
		Scope:      scope,
		AppliesTo:  model.FieldMerchant,
		Pattern:    pattern,
		Category:   "shopping",
		Confidence: confidence,
		Priority:   priority,
		Provenance: model.ProvenanceSeed,
		IsActive:   true,
	}
}

func TestSnapshotPriorityOrdering(t *testing.T) {
	tests := []struct {
		name       string
		rules      []model.PatternRule
		merchant   string
		wantRuleID int
	}{
		{
			name: "lower priority number wins",
			rules: []model.PatternRule{
				patternRule(1, model.ScopeGlobal, "amazon", 50, 0.95),
				patternRule(2, model.ScopeGlobal, "amazon.*", 10, 0.80),
			},
			merchant:   "amazon pay",
			wantRuleID: 2,
		},
		{
			name: "priority tie broken by higher confidence",
			rules: []model.PatternRule{
				patternRule(1, model.ScopeGlobal, "uber.*", 20, 0.70),
				patternRule(2, model.ScopeGlobal, "uber", 20, 0.90),
			},
			merchant:   "uber",
			wantRuleID: 2,
		},
		{
			name: "full tie broken by lower id",
			rules: []model.PatternRule{
				patternRule(7, model.ScopeGlobal, "irctc", 20, 0.90),
				patternRule(3, model.ScopeGlobal, "irctc.*", 20, 0.90),
			},
			merchant:   "irctc",
			wantRuleID: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := NewSnapshot(tt.rules)
			got := snapshot.Match(tt.merchant, "", "")
			require.NotNil(t, got)
			assert.Equal(t, tt.wantRuleID, got.ID)
		})
	}
}

func TestSnapshotCreatedAtTieBreak(t *testing.T) {
	older := patternRule(9, model.ScopeGlobal, "zomato", 20, 0.90)
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := patternRule(2, model.ScopeGlobal, "zomato.*", 20, 0.90)
	newer.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	snapshot := NewSnapshot([]model.PatternRule{newer, older})
	got := snapshot.Match("zomato", "", "")
	require.NotNil(t, got)
	assert.Equal(t, 9, got.ID, "earlier creation should win over lower id")
}

func TestSnapshotTenantBeforeGlobal(t *testing.T) {
	global := patternRule(1, model.ScopeGlobal, "swiggy", 5, 0.95)
	global.Category = "food_dining"
	tenant := patternRule(2, "user-42", "swiggy", 50, 0.80)
	tenant.Category = "business"

	snapshot := NewSnapshot([]model.PatternRule{global, tenant})

	// The tenant's own rule wins despite its weaker priority.
	got := snapshot.Match("swiggy", "", "user-42")
	require.NotNil(t, got)
	assert.Equal(t, "business", got.Category)

	// Other tenants only see the global rule.
	got = snapshot.Match("swiggy", "", "user-99")
	require.NotNil(t, got)
	assert.Equal(t, "food_dining", got.Category)
}

func TestSnapshotFieldRouting(t *testing.T) {
	descRule := patternRule(1, model.ScopeGlobal, "salary", 10, 0.95)
	descRule.AppliesTo = model.FieldDescription

	snapshot := NewSnapshot([]model.PatternRule{descRule})

	assert.Nil(t, snapshot.Match("salary", "", ""), "description rule must not match the merchant field")
	assert.NotNil(t, snapshot.Match("", "SALARY CREDIT JUNE", ""))
}

func TestSnapshotQuarantinesInvalidPatterns(t *testing.T) {
	good := patternRule(1, model.ScopeGlobal, "netflix", 10, 0.95)
	bad := patternRule(2, model.ScopeGlobal, "([unclosed", 5, 0.95)

	snapshot := NewSnapshot([]model.PatternRule{good, bad})

	require.Len(t, snapshot.Invalid(), 1)
	assert.Equal(t, 2, snapshot.Invalid()[0].RuleID)
	assert.Contains(t, snapshot.Invalid()[0].Reason, "invalid pattern")

	// The valid rule still matches.
	assert.Equal(t, 1, snapshot.Len())
	require.NotNil(t, snapshot.Match("netflix", "", ""))
}

func TestSnapshotInactiveRulesSkipped(t *testing.T) {
	rule := patternRule(1, model.ScopeGlobal, "spotify", 10, 0.95)
	rule.IsActive = false

	snapshot := NewSnapshot([]model.PatternRule{rule})
	assert.Zero(t, snapshot.Len())
	assert.Nil(t, snapshot.Match("spotify", "", ""))
}

func TestSnapshotGenerationIncreases(t *testing.T) {
	first := NewSnapshot(nil)
	second := NewSnapshot(nil)
	assert.Greater(t, second.Generation(), first.Generation())
	assert.False(t, first.LoadedAt().IsZero())
}

func TestExactMerchantRule(t *testing.T) {
	literal := patternRule(1, model.ScopeGlobal, "swiggy", 10, 0.97)
	regex := patternRule(2, model.ScopeGlobal, "swig.*", 5, 0.99)

	snapshot := NewSnapshot([]model.PatternRule{literal, regex})

	got := snapshot.ExactMerchantRule("swiggy", "")
	require.NotNil(t, got, "literal pattern should serve exact lookup")
	assert.Equal(t, 1, got.ID)

	assert.Nil(t, snapshot.ExactMerchantRule("swig", ""), "regex patterns never serve exact lookup")
	assert.Nil(t, snapshot.ExactMerchantRule("", ""))
}
