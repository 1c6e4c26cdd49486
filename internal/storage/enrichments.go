package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
)

// InsertEnrichment inserts an enrichment for a transaction if none exists,
// returning true when a row was inserted. A second call for the same
// transaction is a no-op, so batch runs stay idempotent.
func (s *SQLiteStorage) InsertEnrichment(ctx context.Context, enrichment *model.Enrichment) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateEnrichment(enrichment); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO enrichments (transaction_id, category, subcategory,
			type, source, merchant_code, confidence, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		enrichment.TransactionID, nullIfEmpty(enrichment.Category), nullIfEmpty(enrichment.Subcategory),
		string(enrichment.Type), string(enrichment.Source), nullIfEmpty(enrichment.MerchantCode),
		enrichment.Confidence, nullIntIfZero(enrichment.RuleID))
	if err != nil {
		return false, retryable(fmt.Errorf("failed to insert enrichment: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReplaceEnrichment overwrites the enrichment for a transaction. Used only
// by explicit re-enrichment requests.
func (s *SQLiteStorage) ReplaceEnrichment(ctx context.Context, enrichment *model.Enrichment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEnrichment(enrichment); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO enrichments (transaction_id, category, subcategory,
			type, source, merchant_code, confidence, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		enrichment.TransactionID, nullIfEmpty(enrichment.Category), nullIfEmpty(enrichment.Subcategory),
		string(enrichment.Type), string(enrichment.Source), nullIfEmpty(enrichment.MerchantCode),
		enrichment.Confidence, nullIntIfZero(enrichment.RuleID))
	if err != nil {
		return retryable(fmt.Errorf("failed to replace enrichment: %w", err))
	}
	return nil
}

// GetEnrichment retrieves the enrichment for a transaction.
func (s *SQLiteStorage) GetEnrichment(ctx context.Context, transactionID string) (*model.Enrichment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	var enrichment model.Enrichment
	var category, subcategory, merchantCode sql.NullString
	var ruleID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, category, subcategory, type, source,
			merchant_code, confidence, rule_id, enriched_at
		FROM enrichments
		WHERE transaction_id = ?
	`, transactionID).Scan(
		&enrichment.TransactionID, &category, &subcategory, &enrichment.Type,
		&enrichment.Source, &merchantCode, &enrichment.Confidence, &ruleID,
		&enrichment.EnrichedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("enrichment for transaction %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}

	enrichment.Category = category.String
	enrichment.Subcategory = subcategory.String
	enrichment.MerchantCode = merchantCode.String
	enrichment.RuleID = int(ruleID.Int64)
	return &enrichment, nil
}

func nullIntIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
