package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
)

const patternRuleColumns = `id, scope, applies_to, pattern, pattern_hash, category, subcategory,
		type_override, confidence, priority, provenance, is_active, created_at, updated_at`

// CreatePatternRule creates a new pattern rule, enforcing the dedupe key
// (scope, applies_to, pattern hash): when an active duplicate exists, the
// rule with the lower priority number stays active and the other is stored
// inactive.
func (s *SQLiteStorage) CreatePatternRule(ctx context.Context, rule *model.PatternRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePatternRule(rule); err != nil {
		return err
	}
	if rule.PatternHash == "" {
		rule.PatternHash = rule.ComputePatternHash()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := verifyCategoryTx(ctx, tx, rule.Category); err != nil {
		return err
	}

	// Dedupe against an existing active rule with the same key.
	var existingID, existingPriority int
	err = tx.QueryRowContext(ctx, `
		SELECT id, priority FROM pattern_rules
		WHERE scope = ? AND applies_to = ? AND pattern_hash = ? AND is_active = 1
	`, rule.Scope, string(rule.AppliesTo), rule.PatternHash).Scan(&existingID, &existingPriority)
	switch {
	case err == sql.ErrNoRows:
		// No duplicate; insert active.
	case err != nil:
		return fmt.Errorf("failed to check for duplicate rule: %w", err)
	case existingPriority <= rule.Priority:
		// Existing rule is at least as strong; the new rule lands inactive.
		rule.IsActive = false
	default:
		// New rule is stronger; deactivate the old one.
		_, err = tx.ExecContext(ctx, `
			UPDATE pattern_rules SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
		`, existingID)
		if err != nil {
			return fmt.Errorf("failed to deactivate duplicate rule: %w", err)
		}
		if err := insertAuditNote(ctx, tx, "pattern_rule", fmt.Sprintf("%d", existingID),
			fmt.Sprintf("deactivated: superseded by lower-priority duplicate (priority %d)", rule.Priority)); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO pattern_rules (scope, applies_to, pattern, pattern_hash,
			category, subcategory, type_override, confidence, priority, provenance, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.Scope, string(rule.AppliesTo), rule.Pattern, rule.PatternHash,
		rule.Category, nullIfEmpty(rule.Subcategory), nullIfEmpty(string(rule.TypeOverride)),
		rule.Confidence, rule.Priority, string(rule.Provenance), rule.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create pattern rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get pattern rule ID: %w", err)
	}
	rule.ID = int(id)

	return tx.Commit()
}

// GetActivePatternRules retrieves all active pattern rules ordered by
// priority.
func (s *SQLiteStorage) GetActivePatternRules(ctx context.Context) ([]model.PatternRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryPatternRules(ctx, `
		SELECT `+patternRuleColumns+`
		FROM pattern_rules
		WHERE is_active = 1
		ORDER BY scope, priority, id
	`)
}

// ListPatternRules retrieves pattern rules, optionally including inactive
// ones.
func (s *SQLiteStorage) ListPatternRules(ctx context.Context, includeInactive bool) ([]model.PatternRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if includeInactive {
		return s.queryPatternRules(ctx, `
			SELECT `+patternRuleColumns+` FROM pattern_rules ORDER BY scope, priority, id
		`)
	}
	return s.GetActivePatternRules(ctx)
}

// DeactivatePatternRule flags a rule inactive, recording the reason in the
// audit trail. Rules are never deleted.
func (s *SQLiteStorage) DeactivatePatternRule(ctx context.Context, id int, reason string) error {
	return s.deactivateRule(ctx, "pattern_rules", "pattern_rule", id, reason)
}

// CreateEnrichmentRule creates a new generic enrichment rule.
func (s *SQLiteStorage) CreateEnrichmentRule(ctx context.Context, rule *model.EnrichmentRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEnrichmentRule(rule); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := verifyCategoryTx(ctx, tx, rule.CategoryL1); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO enrichment_rules (channel, direction, field, operator, value,
			category_l1, category_l2, category_l3,
			is_card_payment, is_loan_payment, is_investment,
			confidence, priority, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullIfEmpty(string(rule.Channel)), directionToNullString(rule.Direction),
		string(rule.Field), string(rule.Operator), rule.Value,
		rule.CategoryL1, nullIfEmpty(rule.CategoryL2), nullIfEmpty(rule.CategoryL3),
		rule.IsCardPayment, rule.IsLoanPayment, rule.IsInvestment,
		rule.Confidence, rule.Priority, rule.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create enrichment rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get enrichment rule ID: %w", err)
	}
	rule.ID = int(id)

	return tx.Commit()
}

// GetActiveEnrichmentRules retrieves all active enrichment rules ordered by
// priority.
func (s *SQLiteStorage) GetActiveEnrichmentRules(ctx context.Context) ([]model.EnrichmentRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel, direction, field, operator, value,
			category_l1, category_l2, category_l3,
			is_card_payment, is_loan_payment, is_investment,
			confidence, priority, is_active, created_at
		FROM enrichment_rules
		WHERE is_active = 1
		ORDER BY priority, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrichment rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.EnrichmentRule
	for rows.Next() {
		var rule model.EnrichmentRule
		var channel, direction, categoryL2, categoryL3 sql.NullString
		err := rows.Scan(
			&rule.ID, &channel, &direction, &rule.Field, &rule.Operator, &rule.Value,
			&rule.CategoryL1, &categoryL2, &categoryL3,
			&rule.IsCardPayment, &rule.IsLoanPayment, &rule.IsInvestment,
			&rule.Confidence, &rule.Priority, &rule.IsActive, &rule.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrichment rule: %w", err)
		}
		rule.Channel = model.Channel(channel.String)
		rule.Direction = nullStringToDirection(direction)
		rule.CategoryL2 = categoryL2.String
		rule.CategoryL3 = categoryL3.String
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeactivateEnrichmentRule flags an enrichment rule inactive with an audit
// note.
func (s *SQLiteStorage) DeactivateEnrichmentRule(ctx context.Context, id int, reason string) error {
	return s.deactivateRule(ctx, "enrichment_rules", "enrichment_rule", id, reason)
}

func (s *SQLiteStorage) deactivateRule(ctx context.Context, table, entity string, id int, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(reason, "reason"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate %s: %w", entity, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	if err := insertAuditNote(ctx, tx, entity, fmt.Sprintf("%d", id), "deactivated: "+reason); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) queryPatternRules(ctx context.Context, query string, args ...any) ([]model.PatternRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.PatternRule
	for rows.Next() {
		var rule model.PatternRule
		var subcategory, typeOverride sql.NullString
		err := rows.Scan(
			&rule.ID, &rule.Scope, &rule.AppliesTo, &rule.Pattern, &rule.PatternHash,
			&rule.Category, &subcategory, &typeOverride,
			&rule.Confidence, &rule.Priority, &rule.Provenance, &rule.IsActive,
			&rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern rule: %w", err)
		}
		rule.Subcategory = subcategory.String
		rule.TypeOverride = model.TransactionType(typeOverride.String)
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// verifyCategoryTx ensures a category code exists and is active.
func verifyCategoryTx(ctx context.Context, tx *sql.Tx, category string) error {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE code = ? AND is_active = 1)`,
		category).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to verify category: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", common.ErrUnknownCategory, category)
	}
	return nil
}

// directionToNullString converts a TransactionDirection pointer to sql.NullString.
func directionToNullString(dir *model.TransactionDirection) sql.NullString {
	if dir == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(*dir), Valid: true}
}

// nullStringToDirection converts sql.NullString to TransactionDirection pointer.
func nullStringToDirection(ns sql.NullString) *model.TransactionDirection {
	if !ns.Valid {
		return nil
	}
	dir := model.TransactionDirection(ns.String)
	return &dir
}
