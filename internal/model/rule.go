package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// RuleProvenance records where a pattern rule came from.
type RuleProvenance string

// Provenance constants.
const (
	ProvenanceSeed    RuleProvenance = "seed"
	ProvenanceLearned RuleProvenance = "learned"
	ProvenanceOps     RuleProvenance = "ops"
)

// RuleField selects which transaction field a pattern rule tests.
type RuleField string

const (
	// FieldMerchant applies the pattern to the normalized merchant string.
	FieldMerchant RuleField = "merchant"
	// FieldDescription applies the pattern to the normalized description.
	FieldDescription RuleField = "description"
)

// ScopeGlobal is the scope value for rules visible to every tenant.
const ScopeGlobal = "global"

// PatternRule maps a regex match on a transaction field to a category,
// subcategory and optional type override. Lower priority numbers are
// stronger. Rules are effectively immutable once matched; only IsActive
// toggles over time.
type PatternRule struct {
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Scope        string          `json:"scope"` // tenant id or "global"
	AppliesTo    RuleField       `json:"applies_to"`
	Pattern      string          `json:"pattern"` // case-insensitive regex
	PatternHash  string          `json:"pattern_hash"`
	Category     string          `json:"category"`
	Subcategory  string          `json:"subcategory,omitempty"`
	TypeOverride TransactionType `json:"type_override,omitempty"`
	Provenance   RuleProvenance  `json:"provenance"`
	Confidence   float64         `json:"confidence"`
	Priority     int             `json:"priority"`
	ID           int             `json:"id"`
	IsActive     bool            `json:"is_active"`
}

// ComputePatternHash returns the hash component of the rule's dedupe key
// (scope, applies_to, pattern hash).
func (r *PatternRule) ComputePatternHash() string {
	sum := sha256.Sum256([]byte(r.Pattern))
	return fmt.Sprintf("%x", sum)
}

// MatchOperator is the comparison an enrichment rule applies to its field.
type MatchOperator string

// Match operator constants.
const (
	OperatorExact    MatchOperator = "exact"
	OperatorContains MatchOperator = "contains"
	OperatorRegex    MatchOperator = "regex"
)

// EnrichmentField selects which parsed field an enrichment rule tests.
type EnrichmentField string

// Enrichment field constants.
const (
	EnrichCounterparty EnrichmentField = "counterparty"
	EnrichACHEntity    EnrichmentField = "ach_entity"
	EnrichMCC          EnrichmentField = "mcc"
	EnrichDescription  EnrichmentField = "description"
)

// EnrichmentRule is a generic field/operator/value rule for transactions
// carrying richer parsed metadata. Channel and Direction scope the rule; a
// zero value means unscoped.
type EnrichmentRule struct {
	CreatedAt     time.Time             `json:"created_at"`
	Direction     *TransactionDirection `json:"direction,omitempty"`
	Channel       Channel               `json:"channel,omitempty"`
	Field         EnrichmentField       `json:"field"`
	Operator      MatchOperator         `json:"operator"`
	Value         string                `json:"value"`
	CategoryL1    string                `json:"category_l1"`
	CategoryL2    string                `json:"category_l2,omitempty"`
	CategoryL3    string                `json:"category_l3,omitempty"`
	Confidence    float64               `json:"confidence"`
	Priority      int                   `json:"priority"`
	ID            int                   `json:"id"`
	IsCardPayment bool                  `json:"is_card_payment"`
	IsLoanPayment bool                  `json:"is_loan_payment"`
	IsInvestment  bool                  `json:"is_investment"`
	IsActive      bool                  `json:"is_active"`
}
