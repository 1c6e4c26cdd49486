// Package match implements the merchant resolution cascade: exact, fuzzy,
// keyword and alias lookups against the merchant dimension.
package match

import (
	"sort"
	"strings"

	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
)

// Stage identifies which cascade stage produced a match.
type Stage string

// Cascade stages.
const (
	StageExact   Stage = "exact"
	StageFuzzy   Stage = "fuzzy"
	StageKeyword Stage = "keyword"
	StageAlias   Stage = "alias"
)

// Confidence bands for each stage.
const (
	exactConfidenceFloor = 0.90
	fuzzyThreshold       = 0.40
	fuzzyBase            = 0.80
	fuzzyScale           = 0.20
	keywordConfidence    = 0.70
	keywordFullInput     = 0.75
	aliasConfidence      = 0.85
)

// Result is the outcome of a merchant cascade lookup.
type Result struct {
	Merchant   *model.Merchant
	Rule       *model.PatternRule // set when the exact stage hit a literal rule
	Stage      Stage
	Similarity float64 // set for fuzzy matches
	Confidence float64
}

// RuleLookup resolves a normalized merchant string to a literal pattern rule
// for the exact stage. Satisfied by rules.Snapshot.
type RuleLookup interface {
	ExactMerchantRule(merchant, tenant string) *model.PatternRule
}

// Matcher runs the cascade against an in-memory copy of the merchant
// dimension. It is read-only after construction and safe for concurrent use.
type Matcher struct {
	byName      map[string]*model.Merchant
	byCode      map[string]*model.Merchant
	aliasExact  map[string]*model.MerchantAlias
	merchants   []model.Merchant // sorted by code for deterministic iteration
	aliases     []model.MerchantAlias
	ruleLookup  RuleLookup
}

// NewMatcher builds a matcher over active merchants and their aliases.
// ruleLookup may be nil when no pattern rule snapshot participates.
func NewMatcher(merchants []model.Merchant, aliases []model.MerchantAlias, ruleLookup RuleLookup) *Matcher {
	m := &Matcher{
		byName:     make(map[string]*model.Merchant, len(merchants)),
		byCode:     make(map[string]*model.Merchant, len(merchants)),
		aliasExact: make(map[string]*model.MerchantAlias, len(aliases)),
		merchants:  make([]model.Merchant, 0, len(merchants)),
		ruleLookup: ruleLookup,
	}

	for _, merchant := range merchants {
		if !merchant.IsActive {
			continue
		}
		m.merchants = append(m.merchants, merchant)
	}
	sort.Slice(m.merchants, func(i, j int) bool {
		return m.merchants[i].Code < m.merchants[j].Code
	})
	for i := range m.merchants {
		m.byName[m.merchants[i].NormalizedName] = &m.merchants[i]
		m.byCode[m.merchants[i].Code] = &m.merchants[i]
	}

	for _, alias := range aliases {
		if _, ok := m.byCode[alias.MerchantCode]; !ok {
			continue // alias of an inactive or unknown merchant
		}
		m.aliases = append(m.aliases, alias)
	}
	sort.Slice(m.aliases, func(i, j int) bool {
		if m.aliases[i].MerchantCode != m.aliases[j].MerchantCode {
			return m.aliases[i].MerchantCode < m.aliases[j].MerchantCode
		}
		return m.aliases[i].NormalizedAlias < m.aliases[j].NormalizedAlias
	})
	for i := range m.aliases {
		if _, exists := m.aliasExact[m.aliases[i].NormalizedAlias]; !exists {
			m.aliasExact[m.aliases[i].NormalizedAlias] = &m.aliases[i]
		}
	}

	return m
}

// Match runs the cascade over the normalized merchant string, stopping at
// the first stage that produces a hit. A nil result is "no match", never an
// error. tenant scopes the literal-rule lookup in the exact stage.
func (m *Matcher) Match(input, tenant string) *Result {
	input = normalize.String(input)
	if input == "" {
		return nil
	}

	if result := m.matchExact(input, tenant); result != nil {
		return result
	}
	if result := m.matchFuzzy(input); result != nil {
		return result
	}
	if result := m.matchKeyword(input); result != nil {
		return result
	}
	return m.matchAlias(input)
}

func (m *Matcher) matchExact(input, tenant string) *Result {
	if merchant, ok := m.byName[input]; ok {
		return &Result{
			Merchant:   merchant,
			Stage:      StageExact,
			Confidence: exactConfidenceFloor,
		}
	}

	if m.ruleLookup != nil {
		if rule := m.ruleLookup.ExactMerchantRule(input, tenant); rule != nil {
			confidence := exactConfidenceFloor
			if rule.Confidence > confidence {
				confidence = rule.Confidence
			}
			return &Result{
				Rule:       rule,
				Stage:      StageExact,
				Confidence: confidence,
			}
		}
	}
	return nil
}

func (m *Matcher) matchFuzzy(input string) *Result {
	var best *model.Merchant
	bestSim := 0.0

	for i := range m.merchants {
		sim := Similarity(input, m.merchants[i].NormalizedName)
		if sim > bestSim { // ties keep the earlier merchant by code order
			bestSim = sim
			best = &m.merchants[i]
		}
	}

	if best == nil || bestSim < fuzzyThreshold {
		return nil
	}

	confidence := fuzzyBase + bestSim*fuzzyScale
	if confidence > 1.0 {
		confidence = 1.0
	}
	return &Result{
		Merchant:   best,
		Stage:      StageFuzzy,
		Similarity: bestSim,
		Confidence: confidence,
	}
}

func (m *Matcher) matchKeyword(input string) *Result {
	for i := range m.merchants {
		for _, keyword := range m.merchants[i].Keywords {
			keyword = normalize.String(keyword)
			if keyword == "" || !strings.Contains(input, keyword) {
				continue
			}
			confidence := keywordConfidence
			if input == keyword {
				confidence = keywordFullInput
			}
			return &Result{
				Merchant:   &m.merchants[i],
				Stage:      StageKeyword,
				Confidence: confidence,
			}
		}
	}
	return nil
}

func (m *Matcher) matchAlias(input string) *Result {
	if alias, ok := m.aliasExact[input]; ok {
		return &Result{
			Merchant:   m.byCode[alias.MerchantCode],
			Stage:      StageAlias,
			Confidence: aliasConfidence,
		}
	}

	for i := range m.aliases {
		if strings.Contains(input, m.aliases[i].NormalizedAlias) {
			return &Result{
				Merchant:   m.byCode[m.aliases[i].MerchantCode],
				Stage:      StageAlias,
				Confidence: aliasConfidence,
			}
		}
	}
	return nil
}
