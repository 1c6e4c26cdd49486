package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
)

const merchantColumns = `code, display_name, normalized_name, keywords,
		default_category, default_subcategory, default_type, is_active, created_at, updated_at`

// GetActiveMerchants returns all active merchants in the dimension.
func (s *SQLiteStorage) GetActiveMerchants(ctx context.Context) ([]model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryMerchants(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE is_active = 1 ORDER BY code`)
}

// ListMerchants returns every merchant, active or not.
func (s *SQLiteStorage) ListMerchants(ctx context.Context) ([]model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryMerchants(ctx,
		`SELECT `+merchantColumns+` FROM merchants ORDER BY code`)
}

// GetMerchantByCode retrieves a merchant by its code.
func (s *SQLiteStorage) GetMerchantByCode(ctx context.Context, code string) (*model.Merchant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	if merchant := s.getCachedMerchant(code); merchant != nil {
		return merchant, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE code = ?`, code)
	merchant, err := scanMerchant(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant: %w", err)
	}

	s.cacheMerchant(merchant)
	return merchant, nil
}

// SaveMerchant upserts a merchant keyed on its normalized name and
// regenerates its alias rows from the display name and brand keywords.
func (s *SQLiteStorage) SaveMerchant(ctx context.Context, merchant *model.Merchant) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMerchant(merchant); err != nil {
		return err
	}

	keywordsJSON, err := json.Marshal(merchant.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO merchants (code, display_name, normalized_name, keywords,
			default_category, default_subcategory, default_type, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(normalized_name) DO UPDATE SET
			display_name = excluded.display_name,
			keywords = excluded.keywords,
			default_category = excluded.default_category,
			default_subcategory = excluded.default_subcategory,
			default_type = excluded.default_type,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
	`,
		merchant.Code, merchant.DisplayName, merchant.NormalizedName, string(keywordsJSON),
		nullIfEmpty(merchant.DefaultCategory), nullIfEmpty(merchant.DefaultSubcategory),
		nullIfEmpty(string(merchant.DefaultType)), merchant.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save merchant: %w", err)
	}

	// The upsert may have landed on an existing row with a different code;
	// resolve the canonical code before regenerating aliases.
	var code string
	err = tx.QueryRowContext(ctx,
		`SELECT code FROM merchants WHERE normalized_name = ?`,
		merchant.NormalizedName).Scan(&code)
	if err != nil {
		return fmt.Errorf("failed to resolve merchant code: %w", err)
	}
	merchant.Code = code

	if err := regenerateAliases(ctx, tx, merchant); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merchant: %w", err)
	}

	s.cacheMerchant(merchant)
	return nil
}

// regenerateAliases rebuilds the alias index for a merchant from its display
// name and brand keywords.
func regenerateAliases(ctx context.Context, tx *sql.Tx, merchant *model.Merchant) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM merchant_aliases WHERE merchant_code = ?`, merchant.Code)
	if err != nil {
		return fmt.Errorf("failed to clear aliases: %w", err)
	}

	seen := make(map[string]bool)
	aliases := append([]string{merchant.DisplayName}, merchant.Keywords...)
	for _, alias := range aliases {
		normalized := normalize.String(alias)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true

		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO merchant_aliases (merchant_code, alias, normalized_alias)
			VALUES (?, ?, ?)`,
			merchant.Code, alias, normalized)
		if err != nil {
			return fmt.Errorf("failed to insert alias %q: %w", alias, err)
		}
	}
	return nil
}

// InsertMerchantIfAbsent inserts a merchant only if no merchant with the
// same normalized name exists. Safe under concurrent ingestion: whichever
// writer arrives first wins. Returns true when a row was inserted.
func (s *SQLiteStorage) InsertMerchantIfAbsent(ctx context.Context, merchant *model.Merchant) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateMerchant(merchant); err != nil {
		return false, err
	}

	keywordsJSON, err := json.Marshal(merchant.Keywords)
	if err != nil {
		return false, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO merchants (code, display_name, normalized_name, keywords,
			default_category, default_subcategory, default_type, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_name) DO NOTHING
	`,
		merchant.Code, merchant.DisplayName, merchant.NormalizedName, string(keywordsJSON),
		nullIfEmpty(merchant.DefaultCategory), nullIfEmpty(merchant.DefaultSubcategory),
		nullIfEmpty(string(merchant.DefaultType)), merchant.IsActive)
	if err != nil {
		return false, retryable(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetMerchantAliases returns the full alias index.
func (s *SQLiteStorage) GetMerchantAliases(ctx context.Context) ([]model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT merchant_code, alias, normalized_alias, created_at
		FROM merchant_aliases
		ORDER BY merchant_code, normalized_alias
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.MerchantAlias
	for rows.Next() {
		var alias model.MerchantAlias
		if err := rows.Scan(&alias.MerchantCode, &alias.Alias, &alias.NormalizedAlias, &alias.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merchant alias: %w", err)
		}
		aliases = append(aliases, alias)
	}

	return aliases, rows.Err()
}

func (s *SQLiteStorage) queryMerchants(ctx context.Context, query string, args ...any) ([]model.Merchant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merchants []model.Merchant
	for rows.Next() {
		merchant, scanErr := scanMerchant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", scanErr)
		}
		merchants = append(merchants, *merchant)
	}

	return merchants, rows.Err()
}

func scanMerchant(scanner rowScanner) (*model.Merchant, error) {
	var merchant model.Merchant
	var keywordsJSON string
	var defaultCategory, defaultSubcategory, defaultType sql.NullString

	err := scanner.Scan(
		&merchant.Code,
		&merchant.DisplayName,
		&merchant.NormalizedName,
		&keywordsJSON,
		&defaultCategory,
		&defaultSubcategory,
		&defaultType,
		&merchant.IsActive,
		&merchant.CreatedAt,
		&merchant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &merchant.Keywords); err != nil {
			return nil, fmt.Errorf("failed to parse keywords: %w", err)
		}
	}
	merchant.DefaultCategory = defaultCategory.String
	merchant.DefaultSubcategory = defaultSubcategory.String
	merchant.DefaultType = model.TransactionType(defaultType.String)
	return &merchant, nil
}

// getCachedMerchant retrieves a merchant from the cache.
func (s *SQLiteStorage) getCachedMerchant(code string) *model.Merchant {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		if time.Now().After(s.cacheExpiry) {
			s.merchantCache = make(map[string]*model.Merchant)
		}
		return nil
	}

	merchant := s.merchantCache[code]
	s.cacheMutex.RUnlock()
	return merchant
}

// cacheMerchant adds a merchant to the cache.
func (s *SQLiteStorage) cacheMerchant(merchant *model.Merchant) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.merchantCache) == 0 {
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	s.merchantCache[merchant.Code] = merchant
}

// invalidateMerchantCache drops all cached merchants.
func (s *SQLiteStorage) invalidateMerchantCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	s.merchantCache = make(map[string]*model.Merchant)
}
