package model

import "time"

// Merchant is a canonical entry in the merchant dimension: a known brand
// with default categorization. Merchants are created by seed data or on
// first encounter during enrichment; upserts are keyed on NormalizedName.
type Merchant struct {
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Code               string
	DisplayName        string
	NormalizedName     string
	Keywords           []string // brand keywords, matched as substrings
	DefaultCategory    string   // may be empty after a taxonomy-drift strip
	DefaultSubcategory string
	DefaultType        TransactionType // optional; empty means derive from category
	IsActive           bool
}

// MerchantAlias is a registered text variant (UPI handles, bank-string
// spellings) that resolves to a specific merchant. Aliases are derived from
// the merchant's name and brand keywords and regenerated whenever the
// keywords change.
type MerchantAlias struct {
	CreatedAt       time.Time
	MerchantCode    string
	Alias           string
	NormalizedAlias string
}
