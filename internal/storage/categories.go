package storage

import (
	"context"
	"fmt"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
)

// GetCategories retrieves all active categories ordered by code.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, default_type, is_active, created_at
		FROM categories
		WHERE is_active = 1
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var category model.Category
		err := rows.Scan(&category.Code, &category.Name, &category.DefaultType,
			&category.IsActive, &category.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	return categories, rows.Err()
}

// GetSubcategories retrieves all active subcategories ordered by category
// and code.
func (s *SQLiteStorage) GetSubcategories(ctx context.Context) ([]model.Subcategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, category_code, name, is_active, created_at
		FROM subcategories
		WHERE is_active = 1
		ORDER BY category_code, code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subcategories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subcategories []model.Subcategory
	for rows.Next() {
		var sub model.Subcategory
		err := rows.Scan(&sub.Code, &sub.CategoryCode, &sub.Name, &sub.IsActive, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subcategory: %w", err)
		}
		subcategories = append(subcategories, sub)
	}

	return subcategories, rows.Err()
}

// DeactivateCategory flags a category and its subcategories inactive.
// Rules referencing it are handled on the next ValidateReferences pass.
func (s *SQLiteStorage) DeactivateCategory(ctx context.Context, code string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(code, "code"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE categories SET is_active = 0 WHERE code = ? AND is_active = 1`, code)
	if err != nil {
		return fmt.Errorf("failed to deactivate category: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE subcategories SET is_active = 0 WHERE category_code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to deactivate subcategories: %w", err)
	}

	if err := insertAuditNote(ctx, tx, "category", code, "deactivated"); err != nil {
		return err
	}

	return tx.Commit()
}
