package model

import "time"

// EnrichmentSource records which matching stage produced an enrichment.
type EnrichmentSource string

// Enrichment source constants.
const (
	SourcePatternRule     EnrichmentSource = "pattern_rule"
	SourceMerchantExact   EnrichmentSource = "merchant_exact"
	SourceMerchantFuzzy   EnrichmentSource = "merchant_fuzzy"
	SourceMerchantKeyword EnrichmentSource = "merchant_keyword"
	SourceMerchantAlias   EnrichmentSource = "merchant_alias"
	SourceEnrichmentRule  EnrichmentSource = "enrichment_rule"
	SourceDirection       EnrichmentSource = "direction_default"
	SourceOverride        EnrichmentSource = "override"
)

// Enrichment is the resolved label for exactly one transaction. Rows are 1:1
// with transactions; re-running enrichment never overwrites an existing row
// unless re-enrichment is explicitly requested.
type Enrichment struct {
	EnrichedAt    time.Time
	TransactionID string
	Category      string // empty when unresolved
	Subcategory   string
	Type          TransactionType
	Source        EnrichmentSource
	MerchantCode  string
	Confidence    float64
	RuleID        int // pattern or enrichment rule id, 0 when none
}

// Override is an append-only user correction. Overrides are never updated or
// deleted; the most recent row per transaction wins.
type Override struct {
	CreatedAt     time.Time
	TransactionID string
	UserID        string
	Category      string
	Subcategory   string
	Type          TransactionType
	Reason        string
	ID            int64
}

// AuditNote records an operational change to reference data, such as a rule
// deactivated because its category disappeared from the taxonomy.
type AuditNote struct {
	CreatedAt time.Time
	Entity    string
	EntityKey string
	Note      string
	ID        int64
}

// EffectiveTransaction is the read-time composition of override, computed
// enrichment and direction default: the record all downstream reporting
// consumes.
type EffectiveTransaction struct {
	Date          time.Time
	TransactionID string
	UserID        string
	Description   string
	Currency      string
	Category      string
	Subcategory   string
	Type          TransactionType
	MerchantCode  string
	MerchantName  string
	Source        EnrichmentSource
	Direction     TransactionDirection
	Amount        float64
	Confidence    float64
}
