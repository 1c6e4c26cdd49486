// Package service defines the interfaces between the enrichment engine and
// its persistence layer.
package service

import (
	"context"
	"time"

	"github.com/paisaflow/paisaflow/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	From   *time.Time
	To     *time.Time
	UserID string
	Limit  int
	Offset int
}

// EnrichFilter scopes candidate selection for an enrichment batch. AfterID
// is a cursor over transaction ids so a restarted batch never re-reads
// chunks it already visited.
type EnrichFilter struct {
	From    *time.Time
	To      *time.Time
	UserID  string
	AfterID string
	Limit   int
}

// ValidationReport summarizes what the taxonomy validation pass changed.
type ValidationReport struct {
	PatternRulesDeactivated    int
	EnrichmentRulesDeactivated int
	MerchantsStripped          int
}

// Changed reports whether the validation pass touched anything.
func (r *ValidationReport) Changed() bool {
	return r.PatternRulesDeactivated > 0 || r.EnrichmentRulesDeactivated > 0 || r.MerchantsStripped > 0
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Transaction operations. Transactions are immutable facts; saving is
	// insert-if-absent keyed on the dedupe hash.
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionsToEnrich(ctx context.Context, filter EnrichFilter) ([]model.Transaction, error)
	CountTransactionsToEnrich(ctx context.Context, filter EnrichFilter) (int, error)

	// Merchant dimension operations.
	GetActiveMerchants(ctx context.Context) ([]model.Merchant, error)
	GetMerchantAliases(ctx context.Context) ([]model.MerchantAlias, error)
	GetMerchantByCode(ctx context.Context, code string) (*model.Merchant, error)
	SaveMerchant(ctx context.Context, merchant *model.Merchant) error
	InsertMerchantIfAbsent(ctx context.Context, merchant *model.Merchant) (bool, error)
	ListMerchants(ctx context.Context) ([]model.Merchant, error)

	// Pattern rule operations.
	CreatePatternRule(ctx context.Context, rule *model.PatternRule) error
	ListPatternRules(ctx context.Context, includeInactive bool) ([]model.PatternRule, error)
	GetActivePatternRules(ctx context.Context) ([]model.PatternRule, error)
	DeactivatePatternRule(ctx context.Context, id int, reason string) error

	// Enrichment rule operations.
	CreateEnrichmentRule(ctx context.Context, rule *model.EnrichmentRule) error
	GetActiveEnrichmentRules(ctx context.Context) ([]model.EnrichmentRule, error)
	DeactivateEnrichmentRule(ctx context.Context, id int, reason string) error

	// Enrichment rows, 1:1 with transactions.
	InsertEnrichment(ctx context.Context, enrichment *model.Enrichment) (bool, error)
	ReplaceEnrichment(ctx context.Context, enrichment *model.Enrichment) error
	GetEnrichment(ctx context.Context, transactionID string) (*model.Enrichment, error)

	// Override operations, append-only.
	AppendOverride(ctx context.Context, override *model.Override) error
	GetLatestOverride(ctx context.Context, transactionID string) (*model.Override, error)
	GetOverrides(ctx context.Context, transactionID string) ([]model.Override, error)

	// Taxonomy operations.
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetSubcategories(ctx context.Context) ([]model.Subcategory, error)
	DeactivateCategory(ctx context.Context, code string) error

	// ValidateReferences deactivates rules and strips merchant defaults
	// whose category codes no longer exist in the taxonomy.
	ValidateReferences(ctx context.Context) (*ValidationReport, error)
	ListAuditNotes(ctx context.Context, entity string) ([]model.AuditNote, error)

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}
