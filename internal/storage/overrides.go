package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
)

const overrideColumns = `id, transaction_id, user_id, category, subcategory, type, reason, created_at`

// AppendOverride records a user correction for a transaction. Overrides are
// append-only; the latest row wins when reading.
func (s *SQLiteStorage) AppendOverride(ctx context.Context, override *model.Override) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOverride(override); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (transaction_id, user_id, category, subcategory, type, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		override.TransactionID, override.UserID, override.Category,
		nullIfEmpty(override.Subcategory), string(override.Type), nullIfEmpty(override.Reason))
	if err != nil {
		return retryable(fmt.Errorf("failed to append override: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get override ID: %w", err)
	}
	override.ID = id
	return nil
}

// GetLatestOverride retrieves the most recent override for a transaction,
// or common.ErrNotFound when none exists.
func (s *SQLiteStorage) GetLatestOverride(ctx context.Context, transactionID string) (*model.Override, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	overrides, err := s.queryOverrides(ctx, `
		SELECT `+overrideColumns+`
		FROM overrides
		WHERE transaction_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, transactionID)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return nil, fmt.Errorf("override for transaction %s: %w", transactionID, common.ErrNotFound)
	}
	return &overrides[0], nil
}

// GetOverrides retrieves the full override history for a transaction, newest
// first.
func (s *SQLiteStorage) GetOverrides(ctx context.Context, transactionID string) ([]model.Override, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	return s.queryOverrides(ctx, `
		SELECT `+overrideColumns+`
		FROM overrides
		WHERE transaction_id = ?
		ORDER BY created_at DESC, id DESC
	`, transactionID)
}

func (s *SQLiteStorage) queryOverrides(ctx context.Context, query string, args ...any) ([]model.Override, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var overrides []model.Override
	for rows.Next() {
		var override model.Override
		var subcategory, reason sql.NullString
		err := rows.Scan(
			&override.ID, &override.TransactionID, &override.UserID,
			&override.Category, &subcategory, &override.Type, &reason,
			&override.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		override.Subcategory = subcategory.String
		override.Reason = reason.String
		overrides = append(overrides, override)
	}

	return overrides, rows.Err()
}
