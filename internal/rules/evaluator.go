package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
)

// Confidence values for the evaluator's direction-derived defaults.
const (
	atmDefaultConfidence       = 0.60
	directionDefaultConfidence = 0.30
)

// EvalResult is the outcome of evaluating the generic enrichment rules for
// one transaction.
type EvalResult struct {
	Category    string
	Subcategory string
	Type        model.TransactionType // empty means derive from category/direction
	Confidence  float64
	RuleID      int  // 0 for direction-derived defaults
	Default     bool // true when no rule matched and a direction default applied
}

type compiledEnrichmentRule struct {
	regex *regexp.Regexp // non-nil only for regex operators
	rule  model.EnrichmentRule
}

// Evaluator evaluates the generic enrichment rule set against transactions
// carrying parsed metadata. Rules are compiled once at construction; invalid
// regex values are quarantined like pattern rules.
type Evaluator struct {
	rules   []compiledEnrichmentRule
	invalid []InvalidRule
}

// NewEvaluator compiles the given enrichment rules, sorted by priority then
// id for deterministic evaluation.
func NewEvaluator(enrichmentRules []model.EnrichmentRule) *Evaluator {
	e := &Evaluator{}

	for _, rule := range enrichmentRules {
		if !rule.IsActive {
			continue
		}

		var regex *regexp.Regexp
		if rule.Operator == model.OperatorRegex {
			pattern := rule.Value
			if !strings.HasPrefix(pattern, "(?i)") {
				pattern = "(?i)" + pattern
			}
			compiled, err := regexp.Compile(pattern)
			if err != nil {
				e.invalid = append(e.invalid, InvalidRule{
					RuleID: rule.ID,
					Reason: fmt.Sprintf("invalid value pattern %q: %v", rule.Value, err),
				})
				continue
			}
			regex = compiled
		}

		e.rules = append(e.rules, compiledEnrichmentRule{rule: rule, regex: regex})
	}

	// Priority ascending, id ascending.
	sort.SliceStable(e.rules, func(i, j int) bool {
		a, b := e.rules[i].rule, e.rules[j].rule
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ID < b.ID
	})

	return e
}

// Invalid returns the rules quarantined during compilation.
func (e *Evaluator) Invalid() []InvalidRule {
	return e.invalid
}

// Evaluate runs the rule set against a transaction's parsed fields. The
// lowest-priority matching rule wins; when none match, a default is derived
// from the channel and direction alone.
func (e *Evaluator) Evaluate(txn model.Transaction) EvalResult {
	for i := range e.rules {
		cr := &e.rules[i]

		if cr.rule.Channel != "" && cr.rule.Channel != txn.Channel {
			continue
		}
		if cr.rule.Direction != nil && *cr.rule.Direction != txn.Direction {
			continue
		}
		if !cr.matchesField(txn) {
			continue
		}

		return EvalResult{
			Category:    cr.rule.CategoryL1,
			Subcategory: cr.rule.CategoryL2,
			Type:        typeFromFlags(cr.rule),
			Confidence:  cr.rule.Confidence,
			RuleID:      cr.rule.ID,
		}
	}

	return e.directionDefault(txn)
}

func (e *Evaluator) directionDefault(txn model.Transaction) EvalResult {
	if txn.Channel == model.ChannelATM && txn.Direction == model.DirectionDebit {
		return EvalResult{
			Category:    "cash",
			Subcategory: "cash_atm",
			Confidence:  atmDefaultConfidence,
			Default:     true,
		}
	}
	if txn.Direction == model.DirectionCredit {
		return EvalResult{
			Category:   "income",
			Type:       model.TypeIncome,
			Confidence: directionDefaultConfidence,
			Default:    true,
		}
	}
	return EvalResult{
		Confidence: directionDefaultConfidence,
		Default:    true,
	}
}

func (cr *compiledEnrichmentRule) matchesField(txn model.Transaction) bool {
	var value string
	switch cr.rule.Field {
	case model.EnrichCounterparty:
		value = normalize.String(txn.Counterparty)
	case model.EnrichACHEntity:
		value = normalize.String(txn.ACHEntity)
	case model.EnrichMCC:
		value = strings.TrimSpace(txn.MCC)
	case model.EnrichDescription:
		value = normalize.String(txn.Description)
	default:
		return false
	}
	if value == "" {
		return false
	}

	want := normalize.String(cr.rule.Value)
	switch cr.rule.Operator {
	case model.OperatorExact:
		return value == want
	case model.OperatorContains:
		return strings.Contains(value, want)
	case model.OperatorRegex:
		return cr.regex != nil && cr.regex.MatchString(value)
	}
	return false
}

// typeFromFlags derives a transaction type from an enrichment rule's
// semantic flags; card and loan payments are debt service, investments are
// asset purchases.
func typeFromFlags(rule model.EnrichmentRule) model.TransactionType {
	switch {
	case rule.IsInvestment:
		return model.TypeAssets
	case rule.IsLoanPayment, rule.IsCardPayment:
		return model.TypeDebt
	}
	return ""
}
