package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/model"
)

func activeMerchant(code, normalizedName string, keywords ...string) model.Merchant {
	return model.Merchant{
		Code:           code,
		DisplayName:    strings.ToUpper(normalizedName),
		NormalizedName: normalizedName,
		Keywords:       keywords,
		IsActive:       true,
	}
}

type staticRuleLookup struct {
	rule *model.PatternRule
}

func (s *staticRuleLookup) ExactMerchantRule(_, _ string) *model.PatternRule {
	return s.rule
}

func TestMatchExactMerchantName(t *testing.T) {
	matcher := NewMatcher([]model.Merchant{
		activeMerchant("swiggy", "swiggy"),
	}, nil, nil)

	result := matcher.Match("SWIGGY", "")
	require.NotNil(t, result)
	assert.Equal(t, StageExact, result.Stage)
	assert.Equal(t, "swiggy", result.Merchant.Code)
	assert.InDelta(t, 0.90, result.Confidence, 1e-9)
}

func TestMatchExactLiteralRule(t *testing.T) {
	tests := []struct {
		name           string
		ruleConfidence float64
		wantConfidence float64
	}{
		{name: "rule confidence above floor wins", ruleConfidence: 0.97, wantConfidence: 0.97},
		{name: "weak rule confidence raised to floor", ruleConfidence: 0.50, wantConfidence: 0.90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &model.PatternRule{
				ID:         7,
				Pattern:    "acme stores",
				Category:   "shopping",
				Confidence: tt.ruleConfidence,
				IsActive:   true,
			}
			matcher := NewMatcher(nil, nil, &staticRuleLookup{rule: rule})

			result := matcher.Match("ACME STORES", "")
			require.NotNil(t, result)
			assert.Equal(t, StageExact, result.Stage)
			assert.Nil(t, result.Merchant)
			assert.Equal(t, 7, result.Rule.ID)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 1e-9)
		})
	}
}

func TestMatchFuzzyTypo(t *testing.T) {
	matcher := NewMatcher([]model.Merchant{
		activeMerchant("swiggy", "swiggy"),
	}, nil, nil)

	result := matcher.Match("SWIGY", "")
	require.NotNil(t, result)
	assert.Equal(t, StageFuzzy, result.Stage)
	assert.Equal(t, "swiggy", result.Merchant.Code)
	assert.InDelta(t, 0.8333, result.Similarity, 0.001)
	assert.InDelta(t, 0.9667, result.Confidence, 0.001)
}

func TestMatchFuzzyThresholdBoundary(t *testing.T) {
	matcher := NewMatcher([]model.Merchant{
		activeMerchant("longname", strings.Repeat("a", 100)),
	}, nil, nil)

	// 60 of 100 runes differ: similarity exactly 0.40, accepted.
	accepted := matcher.Match(strings.Repeat("a", 40)+strings.Repeat("b", 60), "")
	require.NotNil(t, accepted)
	assert.Equal(t, StageFuzzy, accepted.Stage)
	assert.InDelta(t, 0.40, accepted.Similarity, 1e-9)
	assert.InDelta(t, 0.88, accepted.Confidence, 1e-9)

	// 61 of 100 runes differ: similarity 0.39, rejected.
	rejected := matcher.Match(strings.Repeat("a", 39)+strings.Repeat("b", 61), "")
	assert.Nil(t, rejected)
}

func TestMatchKeyword(t *testing.T) {
	matcher := NewMatcher([]model.Merchant{
		activeMerchant("bigbasket", "supermarket grocery supplies", "bigbasket"),
	}, nil, nil)

	result := matcher.Match("BIGBASKET 4412", "")
	require.NotNil(t, result)
	assert.Equal(t, StageKeyword, result.Stage)
	assert.Equal(t, "bigbasket", result.Merchant.Code)
	assert.InDelta(t, 0.70, result.Confidence, 1e-9)

	// Input that is exactly the keyword scores slightly higher.
	full := matcher.Match("bigbasket", "")
	require.NotNil(t, full)
	assert.Equal(t, StageKeyword, full.Stage)
	assert.InDelta(t, 0.75, full.Confidence, 1e-9)
}

func TestMatchAlias(t *testing.T) {
	merchants := []model.Merchant{
		activeMerchant("paytm", "one97 communications"),
	}
	aliases := []model.MerchantAlias{
		{MerchantCode: "paytm", Alias: "PAYTM", NormalizedAlias: "paytm"},
	}
	matcher := NewMatcher(merchants, aliases, nil)

	exact := matcher.Match("PAYTM", "")
	require.NotNil(t, exact)
	assert.Equal(t, StageAlias, exact.Stage)
	assert.Equal(t, "paytm", exact.Merchant.Code)
	assert.InDelta(t, 0.85, exact.Confidence, 1e-9)

	contains := matcher.Match("paytm 9912", "")
	require.NotNil(t, contains)
	assert.Equal(t, StageAlias, contains.Stage)
	assert.Equal(t, "paytm", contains.Merchant.Code)
}

func TestMatchAliasOfInactiveMerchantIgnored(t *testing.T) {
	inactive := activeMerchant("defunct", "zqxwv holdings")
	inactive.IsActive = false
	aliases := []model.MerchantAlias{
		{MerchantCode: "defunct", Alias: "zqxwv", NormalizedAlias: "zqxwv"},
	}
	matcher := NewMatcher([]model.Merchant{inactive}, aliases, nil)

	assert.Nil(t, matcher.Match("zqxwv", ""))
}

func TestMatchNoMatch(t *testing.T) {
	matcher := NewMatcher([]model.Merchant{
		activeMerchant("swiggy", "swiggy", "swiggy"),
	}, nil, nil)

	assert.Nil(t, matcher.Match("completely unrelated counterparty 992817", ""))
	assert.Nil(t, matcher.Match("", ""))
	assert.Nil(t, matcher.Match("   ", ""))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"swiggy", "swiggy", 1.0},
		{"swigy", "swiggy", 0.8333},
		{"", "swiggy", 0.0},
		{"", "", 1.0},
		{"abc", "xyz", 0.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 0.001, "Similarity(%q, %q)", tt.a, tt.b)
	}
}
