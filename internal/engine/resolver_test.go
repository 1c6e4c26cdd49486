package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/match"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/rules"
)

func testCategories() []model.Category {
	return []model.Category{
		{Code: "food_dining", Name: "Food & Dining", DefaultType: model.TypeWants, IsActive: true},
		{Code: "income", Name: "Income", DefaultType: model.TypeIncome, IsActive: true},
		{Code: "shopping", Name: "Shopping", DefaultType: model.TypeWants, IsActive: true},
		{Code: "cash", Name: "Cash", DefaultType: model.TypeNeeds, IsActive: true},
		{Code: "insurance", Name: "Insurance", DefaultType: model.TypeProtection, IsActive: true},
	}
}

func testResolver(patternRules []model.PatternRule, merchants []model.Merchant, enrichmentRules []model.EnrichmentRule) *Resolver {
	snapshot := rules.NewSnapshot(patternRules)
	matcher := match.NewMatcher(merchants, nil, snapshot)
	evaluator := rules.NewEvaluator(enrichmentRules)
	return NewResolver(snapshot, matcher, evaluator, testCategories())
}

func swiggyMerchant() model.Merchant {
	return model.Merchant{
		Code:               "swiggy",
		DisplayName:        "Swiggy",
		NormalizedName:     "swiggy",
		DefaultCategory:    "food_dining",
		DefaultSubcategory: "fd_online",
		IsActive:           true,
	}
}

func TestResolveExactMerchant(t *testing.T) {
	resolver := testResolver(nil, []model.Merchant{swiggyMerchant()}, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		MerchantRaw: "SWIGGY",
		Direction:   model.DirectionDebit,
	})

	assert.Equal(t, "food_dining", enrichment.Category)
	assert.Equal(t, "fd_online", enrichment.Subcategory)
	assert.Equal(t, model.TypeWants, enrichment.Type)
	assert.Equal(t, "swiggy", enrichment.MerchantCode)
	assert.Equal(t, model.SourceMerchantExact, enrichment.Source)
	assert.GreaterOrEqual(t, enrichment.Confidence, 0.90)
}

func TestResolveFuzzyMerchant(t *testing.T) {
	resolver := testResolver(nil, []model.Merchant{swiggyMerchant()}, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		MerchantRaw: "SWIGY",
		Direction:   model.DirectionDebit,
	})

	assert.Equal(t, "food_dining", enrichment.Category)
	assert.Equal(t, model.SourceMerchantFuzzy, enrichment.Source)
	assert.InDelta(t, 0.966, enrichment.Confidence, 0.001)
}

func TestResolveSalaryPatternRule(t *testing.T) {
	salaryRule := model.PatternRule{
		ID:           1,
		Scope:        model.ScopeGlobal,
		AppliesTo:    model.FieldDescription,
		Pattern:      "salary",
		Category:     "income",
		Subcategory:  "inc_salary",
		TypeOverride: model.TypeIncome,
		Confidence:   0.95,
		Priority:     18,
		IsActive:     true,
	}
	resolver := testResolver([]model.PatternRule{salaryRule}, []model.Merchant{swiggyMerchant()}, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		Description: "SALARY CREDIT JUNE ACME CORP",
		Direction:   model.DirectionCredit,
	})

	assert.Equal(t, "income", enrichment.Category)
	assert.Equal(t, "inc_salary", enrichment.Subcategory)
	assert.Equal(t, model.TypeIncome, enrichment.Type)
	assert.Equal(t, model.SourcePatternRule, enrichment.Source)
	assert.Equal(t, 1, enrichment.RuleID)
}

func TestResolveDescriptionRuleSurvivesRaggedSpacing(t *testing.T) {
	// Statement text often carries runs of padding spaces; rules match the
	// normalized description, not the raw one.
	salaryRule := model.PatternRule{
		ID:           1,
		Scope:        model.ScopeGlobal,
		AppliesTo:    model.FieldDescription,
		Pattern:      "salary credit",
		Category:     "income",
		Subcategory:  "inc_salary",
		TypeOverride: model.TypeIncome,
		Confidence:   0.95,
		Priority:     18,
		IsActive:     true,
	}
	resolver := testResolver([]model.PatternRule{salaryRule}, nil, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		Description: "SALARY   CREDIT JUNE ACME CORP",
		Direction:   model.DirectionCredit,
	})

	assert.Equal(t, "income", enrichment.Category)
	assert.Equal(t, "inc_salary", enrichment.Subcategory)
	assert.Equal(t, model.SourcePatternRule, enrichment.Source)
}

func TestResolveUnmatchedCredit(t *testing.T) {
	resolver := testResolver(nil, nil, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		MerchantRaw: "ZVQX UNKNOWN PAYER",
		Direction:   model.DirectionCredit,
	})

	assert.Empty(t, enrichment.Category, "unmatched credit leaves category unresolved")
	assert.Equal(t, model.TypeIncome, enrichment.Type)
	assert.Equal(t, model.SourceDirection, enrichment.Source)
	assert.InDelta(t, 0.30, enrichment.Confidence, 1e-9)
}

func TestResolveTypeNeverEmpty(t *testing.T) {
	resolver := testResolver(nil, nil, nil)

	for _, direction := range []model.TransactionDirection{model.DirectionDebit, model.DirectionCredit} {
		enrichment := resolver.Resolve(model.Transaction{
			ID:        "t1",
			UserID:    "u1",
			Direction: direction,
		})
		assert.True(t, model.ValidTransactionType(enrichment.Type),
			"direction %s must still produce a valid type", direction)
	}
}

func TestResolveExplicitRuleOutranksFuzzyInference(t *testing.T) {
	// A tenant rule pinning a confusable merchant string must beat the
	// fuzzy stage even though fuzzy would score higher confidence.
	tenantRule := model.PatternRule{
		ID:         9,
		Scope:      "u1",
		AppliesTo:  model.FieldMerchant,
		Pattern:    "swigy",
		Category:   "shopping",
		Confidence: 0.75,
		Priority:   5,
		IsActive:   true,
	}
	resolver := testResolver([]model.PatternRule{tenantRule}, []model.Merchant{swiggyMerchant()}, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		MerchantRaw: "SWIGY",
		Direction:   model.DirectionDebit,
	})

	assert.Equal(t, model.SourcePatternRule, enrichment.Source)
	assert.Equal(t, "shopping", enrichment.Category)
	assert.Equal(t, 9, enrichment.RuleID)
}

func TestResolveEnrichmentRulesOnlyWithParsedMetadata(t *testing.T) {
	nachRule := model.EnrichmentRule{
		ID:         3,
		Channel:    model.ChannelNACH,
		Field:      model.EnrichACHEntity,
		Operator:   model.OperatorContains,
		Value:      "lic",
		CategoryL1: "insurance",
		Confidence: 0.90,
		Priority:   10,
		IsActive:   true,
	}
	resolver := testResolver(nil, nil, []model.EnrichmentRule{nachRule})

	withMetadata := resolver.Resolve(model.Transaction{
		ID:        "t1",
		UserID:    "u1",
		Direction: model.DirectionDebit,
		Channel:   model.ChannelNACH,
		ACHEntity: "LIC OF INDIA",
	})
	require.Equal(t, model.SourceEnrichmentRule, withMetadata.Source)
	assert.Equal(t, "insurance", withMetadata.Category)
	assert.Equal(t, model.TypeProtection, withMetadata.Type, "type falls back to the category default")

	withoutMetadata := resolver.Resolve(model.Transaction{
		ID:          "t2",
		UserID:      "u1",
		Direction:   model.DirectionDebit,
		Description: "SOME OPAQUE DEBIT",
	})
	assert.Equal(t, model.SourceDirection, withoutMetadata.Source)
	assert.Empty(t, withoutMetadata.Category)
	assert.Equal(t, model.TypeWants, withoutMetadata.Type)
}

func TestResolveMerchantInputFallsBackToDescription(t *testing.T) {
	resolver := testResolver(nil, []model.Merchant{swiggyMerchant()}, nil)

	enrichment := resolver.Resolve(model.Transaction{
		ID:          "t1",
		UserID:      "u1",
		Description: "SWIGGY",
		Direction:   model.DirectionDebit,
	})

	assert.Equal(t, "swiggy", enrichment.MerchantCode)
	assert.Equal(t, model.SourceMerchantExact, enrichment.Source)
}
