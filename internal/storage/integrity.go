package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/service"
)

// ValidateReferences cross-checks rules and merchant defaults against the
// current taxonomy. Anything pointing at a missing or inactive category is
// deactivated (rules) or stripped (merchant defaults) with an audit note,
// never treated as fatal.
func (s *SQLiteStorage) ValidateReferences(ctx context.Context) (*service.ValidationReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report := &service.ValidationReport{}

	report.PatternRulesDeactivated, err = s.deactivateDriftedRules(ctx, tx, "pattern_rules", "pattern_rule", `
		SELECT id, category FROM pattern_rules r
		WHERE r.is_active = 1 AND (
			NOT EXISTS (SELECT 1 FROM categories c WHERE c.code = r.category AND c.is_active = 1)
			OR (r.subcategory IS NOT NULL AND NOT EXISTS (
				SELECT 1 FROM subcategories sc WHERE sc.code = r.subcategory AND sc.is_active = 1))
		)
	`)
	if err != nil {
		return nil, err
	}

	report.EnrichmentRulesDeactivated, err = s.deactivateDriftedRules(ctx, tx, "enrichment_rules", "enrichment_rule", `
		SELECT id, category_l1 FROM enrichment_rules r
		WHERE r.is_active = 1
			AND NOT EXISTS (SELECT 1 FROM categories c WHERE c.code = r.category_l1 AND c.is_active = 1)
	`)
	if err != nil {
		return nil, err
	}

	report.MerchantsStripped, err = s.stripDriftedMerchantDefaults(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit validation: %w", err)
	}

	if report.Changed() {
		s.invalidateMerchantCache()
	}
	return report, nil
}

func (s *SQLiteStorage) deactivateDriftedRules(ctx context.Context, tx *sql.Tx, table, entity, findQuery string) (int, error) {
	rows, err := tx.QueryContext(ctx, findQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to find drifted %s rows: %w", table, err)
	}

	type drifted struct {
		id       int
		category string
	}
	var found []drifted
	for rows.Next() {
		var d drifted
		if err := rows.Scan(&d.id, &d.category); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan drifted rule: %w", err)
		}
		found = append(found, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	for _, d := range found {
		_, err := tx.ExecContext(ctx, `UPDATE `+table+` SET is_active = 0 WHERE id = ?`, d.id)
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate drifted %s %d: %w", entity, d.id, err)
		}
		note := fmt.Sprintf("deactivated: category %q no longer in active taxonomy", d.category)
		if err := insertAuditNote(ctx, tx, entity, fmt.Sprintf("%d", d.id), note); err != nil {
			return 0, err
		}
	}
	return len(found), nil
}

func (s *SQLiteStorage) stripDriftedMerchantDefaults(ctx context.Context, tx *sql.Tx) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT code, default_category FROM merchants m
		WHERE m.is_active = 1 AND m.default_category IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM categories c WHERE c.code = m.default_category AND c.is_active = 1)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find drifted merchants: %w", err)
	}

	type drifted struct {
		code     string
		category string
	}
	var found []drifted
	for rows.Next() {
		var d drifted
		if err := rows.Scan(&d.code, &d.category); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("failed to scan drifted merchant: %w", err)
		}
		found = append(found, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()

	for _, d := range found {
		_, err := tx.ExecContext(ctx, `
			UPDATE merchants SET default_category = NULL, default_subcategory = NULL,
				updated_at = CURRENT_TIMESTAMP
			WHERE code = ?
		`, d.code)
		if err != nil {
			return 0, fmt.Errorf("failed to strip merchant %s defaults: %w", d.code, err)
		}
		note := fmt.Sprintf("defaults stripped: category %q no longer in active taxonomy", d.category)
		if err := insertAuditNote(ctx, tx, "merchant", d.code, note); err != nil {
			return 0, err
		}
	}
	return len(found), nil
}

// ListAuditNotes retrieves audit notes for an entity type, newest first.
func (s *SQLiteStorage) ListAuditNotes(ctx context.Context, entity string) ([]model.AuditNote, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(entity, "entity"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity, entity_key, note, created_at
		FROM audit_notes
		WHERE entity = ?
		ORDER BY created_at DESC, id DESC
	`, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []model.AuditNote
	for rows.Next() {
		var note model.AuditNote
		err := rows.Scan(&note.ID, &note.Entity, &note.EntityKey, &note.Note, &note.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit note: %w", err)
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}

func insertAuditNote(ctx context.Context, tx *sql.Tx, entity, entityKey, note string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_notes (entity, entity_key, note) VALUES (?, ?, ?)
	`, entity, entityKey, note)
	if err != nil {
		return fmt.Errorf("failed to insert audit note: %w", err)
	}
	return nil
}
