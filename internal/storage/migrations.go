package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 6

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Core facts and dimensions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					user_id TEXT NOT NULL,
					external_id TEXT,
					date DATETIME NOT NULL,
					amount REAL NOT NULL,
					direction TEXT NOT NULL,
					currency TEXT DEFAULT 'INR',
					description TEXT,
					merchant_raw TEXT,
					channel TEXT,
					counterparty TEXT,
					ach_entity TEXT,
					mcc TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_direction ON transactions(direction)`,

				`CREATE TABLE IF NOT EXISTS categories (
					code TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					default_type TEXT NOT NULL,
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS subcategories (
					code TEXT PRIMARY KEY,
					category_code TEXT NOT NULL,
					name TEXT NOT NULL,
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (category_code) REFERENCES categories(code)
				)`,
				`CREATE INDEX idx_subcategories_category ON subcategories(category_code)`,

				`CREATE TABLE IF NOT EXISTS merchants (
					code TEXT PRIMARY KEY,
					display_name TEXT NOT NULL,
					normalized_name TEXT UNIQUE NOT NULL,
					keywords TEXT DEFAULT '[]',
					default_category TEXT,
					default_subcategory TEXT,
					default_type TEXT,
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS merchant_aliases (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					merchant_code TEXT NOT NULL,
					alias TEXT NOT NULL,
					normalized_alias TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (merchant_code, normalized_alias),
					FOREIGN KEY (merchant_code) REFERENCES merchants(code)
				)`,
				`CREATE INDEX idx_merchant_aliases_alias ON merchant_aliases(normalized_alias)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Pattern and enrichment rule sets",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pattern_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					scope TEXT NOT NULL DEFAULT 'global',
					applies_to TEXT NOT NULL,
					pattern TEXT NOT NULL,
					pattern_hash TEXT NOT NULL,
					category TEXT NOT NULL,
					subcategory TEXT,
					type_override TEXT,
					confidence REAL DEFAULT 0,
					priority INTEGER NOT NULL,
					provenance TEXT NOT NULL DEFAULT 'ops',
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				// Dedupe key: only one active rule per (scope, field, pattern).
				`CREATE UNIQUE INDEX idx_pattern_rules_dedupe
					ON pattern_rules(scope, applies_to, pattern_hash) WHERE is_active = 1`,
				`CREATE INDEX idx_pattern_rules_active ON pattern_rules(is_active, scope, priority)`,

				`CREATE TABLE IF NOT EXISTS enrichment_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					channel TEXT,
					direction TEXT,
					field TEXT NOT NULL,
					operator TEXT NOT NULL,
					value TEXT NOT NULL,
					category_l1 TEXT NOT NULL,
					category_l2 TEXT,
					category_l3 TEXT,
					is_card_payment BOOLEAN DEFAULT 0,
					is_loan_payment BOOLEAN DEFAULT 0,
					is_investment BOOLEAN DEFAULT 0,
					confidence REAL DEFAULT 0,
					priority INTEGER NOT NULL,
					is_active BOOLEAN DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_enrichment_rules_active ON enrichment_rules(is_active, priority)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Enrichments, overrides and audit trail",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// transaction_id PRIMARY KEY enforces the 1:1 invariant.
				`CREATE TABLE IF NOT EXISTS enrichments (
					transaction_id TEXT PRIMARY KEY,
					category TEXT,
					subcategory TEXT,
					type TEXT NOT NULL,
					confidence REAL DEFAULT 0,
					source TEXT NOT NULL,
					rule_id INTEGER DEFAULT 0,
					merchant_code TEXT,
					enriched_at DATETIME NOT NULL,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_enrichments_category ON enrichments(category)`,

				// Append-only: rows are never updated or deleted.
				`CREATE TABLE IF NOT EXISTS overrides (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					category TEXT NOT NULL,
					subcategory TEXT,
					type TEXT,
					reason TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_overrides_transaction ON overrides(transaction_id, id)`,

				`CREATE TABLE IF NOT EXISTS audit_notes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					entity TEXT NOT NULL,
					entity_key TEXT NOT NULL,
					note TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_audit_notes_entity ON audit_notes(entity, entity_key)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Seed taxonomy",
		Up:          seedTaxonomy,
	},
	{
		Version:     5,
		Description: "Seed merchants and rule sets",
		Up:          seedRules,
	},
	{
		Version:     6,
		Description: "Optimize database indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// Candidate selection scans transactions missing an enrichment row.
				`CREATE INDEX IF NOT EXISTS idx_transactions_id_date ON transactions(id, date)`,
				// UNIQUE constraint already indexes the hash column.
				`DROP INDEX IF EXISTS idx_transactions_hash`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

func seedTaxonomy(tx *sql.Tx) error {
	categories := []struct {
		code        string
		name        string
		defaultType model.TransactionType
	}{
		{"food_dining", "Food & Dining", model.TypeWants},
		{"groceries", "Groceries", model.TypeNeeds},
		{"transport", "Transport", model.TypeNeeds},
		{"shopping", "Shopping", model.TypeWants},
		{"utilities", "Utilities", model.TypeNeeds},
		{"entertainment", "Entertainment", model.TypeWants},
		{"health", "Health", model.TypeNeeds},
		{"rent", "Rent & Housing", model.TypeNeeds},
		{"income", "Income", model.TypeIncome},
		{"transfer", "Transfers", model.TypeTransfer},
		{"cash", "Cash Withdrawal", model.TypeWants},
		{"fees", "Bank Fees & Charges", model.TypeFees},
		{"investment", "Investments", model.TypeAssets},
		{"loan", "Loans & EMIs", model.TypeDebt},
		{"insurance", "Insurance", model.TypeProtection},
		{"charity", "Charity & Donations", model.TypeCharity},
		{"tax", "Taxes", model.TypeTax},
		{"business", "Business", model.TypeBusiness},
		{model.UncategorizedCode, "Uncategorized", model.TypeWants},
	}

	for _, cat := range categories {
		_, err := tx.Exec(
			`INSERT INTO categories (code, name, default_type) VALUES (?, ?, ?)`,
			cat.code, cat.name, string(cat.defaultType))
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", cat.code, err)
		}
	}

	subcategories := []struct {
		code, category, name string
	}{
		{"fd_online", "food_dining", "Online Food Delivery"},
		{"fd_restaurant", "food_dining", "Restaurants"},
		{"fd_cafe", "food_dining", "Cafes"},
		{"gr_supermarket", "groceries", "Supermarkets"},
		{"gr_online", "groceries", "Online Grocery"},
		{"tp_ride", "transport", "Ride Hailing"},
		{"tp_fuel", "transport", "Fuel"},
		{"tp_rail", "transport", "Rail & Metro"},
		{"shop_clothing", "shopping", "Clothing"},
		{"shop_online", "shopping", "Online Marketplaces"},
		{"shop_electronics", "shopping", "Electronics"},
		{"ut_power", "utilities", "Electricity"},
		{"ut_telecom", "utilities", "Mobile & Broadband"},
		{"ent_streaming", "entertainment", "Streaming Services"},
		{"ent_movies", "entertainment", "Movies & Events"},
		{"hl_pharmacy", "health", "Pharmacy"},
		{"hl_hospital", "health", "Hospitals & Clinics"},
		{"rent_home", "rent", "House Rent"},
		{"inc_salary", "income", "Salary"},
		{"inc_interest", "income", "Interest"},
		{"inc_refund", "income", "Refunds"},
		{"tr_upi", "transfer", "UPI Transfers"},
		{"tr_self", "transfer", "Self Transfers"},
		{"cash_atm", "cash", "ATM Withdrawal"},
		{"fee_bank", "fees", "Bank Charges"},
		{"fee_forex", "fees", "Forex Markup"},
		{"inv_mf", "investment", "Mutual Funds"},
		{"inv_stocks", "investment", "Stocks"},
		{"ln_emi", "loan", "Loan EMI"},
		{"ln_credit_card", "loan", "Credit Card Payment"},
		{"ins_life", "insurance", "Life Insurance"},
		{"ins_health", "insurance", "Health Insurance"},
		{"ch_donation", "charity", "Donations"},
		{"tax_income", "tax", "Income Tax"},
	}

	for _, sub := range subcategories {
		_, err := tx.Exec(
			`INSERT INTO subcategories (code, category_code, name) VALUES (?, ?, ?)`,
			sub.code, sub.category, sub.name)
		if err != nil {
			return fmt.Errorf("failed to seed subcategory %s: %w", sub.code, err)
		}
	}

	return nil
}

func seedRules(tx *sql.Tx) error {
	merchants := []struct {
		code, display, category, subcategory string
		defaultType                          model.TransactionType
		keywords                             string
	}{
		{"swiggy", "Swiggy", "food_dining", "fd_online", "", `["swiggy","swiggy instamart"]`},
		{"zomato", "Zomato", "food_dining", "fd_online", "", `["zomato"]`},
		{"amazon", "Amazon", "shopping", "shop_online", "", `["amazon","amzn"]`},
		{"flipkart", "Flipkart", "shopping", "shop_online", "", `["flipkart","fkrt"]`},
		{"bigbasket", "BigBasket", "groceries", "gr_online", "", `["bigbasket","bbnow"]`},
		{"uber", "Uber", "transport", "tp_ride", "", `["uber"]`},
		{"ola", "Ola", "transport", "tp_ride", "", `["olacabs","ola money"]`},
		{"irctc", "IRCTC", "transport", "tp_rail", "", `["irctc"]`},
		{"netflix", "Netflix", "entertainment", "ent_streaming", "", `["netflix"]`},
		{"spotify", "Spotify", "entertainment", "ent_streaming", "", `["spotify"]`},
		{"apollo_pharmacy", "Apollo Pharmacy", "health", "hl_pharmacy", "", `["apollo pharmacy"]`},
		{"zerodha", "Zerodha", "investment", "inv_stocks", model.TypeAssets, `["zerodha"]`},
		{"lic", "LIC of India", "insurance", "ins_life", model.TypeProtection, `["lic of india","lic premium"]`},
	}

	for _, m := range merchants {
		_, err := tx.Exec(`
			INSERT INTO merchants (code, display_name, normalized_name, keywords,
				default_category, default_subcategory, default_type)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.code, m.display, normalize.String(m.display), m.keywords,
			m.category, m.subcategory, nullIfEmpty(string(m.defaultType)))
		if err != nil {
			return fmt.Errorf("failed to seed merchant %s: %w", m.code, err)
		}
		// Seed the alias index from the merchant name itself; keyword-derived
		// aliases are regenerated by SaveMerchant on later edits.
		_, err = tx.Exec(`
			INSERT INTO merchant_aliases (merchant_code, alias, normalized_alias)
			VALUES (?, ?, ?)`,
			m.code, m.display, normalize.String(m.display))
		if err != nil {
			return fmt.Errorf("failed to seed alias for %s: %w", m.code, err)
		}
	}

	patternRules := []struct {
		pattern, category, subcategory string
		typeOverride                   model.TransactionType
		priority                       int
		confidence                     float64
	}{
		{`atm (wdl|cash|withdrawal)`, "cash", "cash_atm", "", 10, 0.95},
		{`salary`, "income", "inc_salary", model.TypeIncome, 18, 0.95},
		{`upi[ /](p2p|self)`, "transfer", "tr_self", model.TypeTransfer, 20, 0.90},
		{`nach|ach debit`, "loan", "ln_emi", model.TypeDebt, 25, 0.90},
		{`interest (credit|earned|paid)`, "income", "inc_interest", model.TypeIncome, 30, 0.90},
		{`(bank|service|sms) (fee|charge)|consolidated charges`, "fees", "fee_bank", model.TypeFees, 35, 0.90},
		{`income tax|tds deducted`, "tax", "tax_income", model.TypeTax, 40, 0.90},
		{`donation`, "charity", "ch_donation", model.TypeCharity, 45, 0.85},
	}

	for _, r := range patternRules {
		rule := model.PatternRule{Pattern: r.pattern}
		_, err := tx.Exec(`
			INSERT INTO pattern_rules (scope, applies_to, pattern, pattern_hash,
				category, subcategory, type_override, confidence, priority, provenance)
			VALUES ('global', 'description', ?, ?, ?, ?, ?, ?, ?, 'seed')`,
			r.pattern, rule.ComputePatternHash(), r.category, r.subcategory,
			nullIfEmpty(string(r.typeOverride)), r.confidence, r.priority)
		if err != nil {
			return fmt.Errorf("failed to seed pattern rule %q: %w", r.pattern, err)
		}
	}

	enrichmentRules := []struct {
		channel, direction, field, operator, value string
		categoryL1, categoryL2                     string
		card, loan, investment                     bool
		priority                                   int
		confidence                                 float64
	}{
		{"NACH", "debit", "ach_entity", "contains", "lic", "insurance", "ins_life", false, false, false, 10, 0.85},
		{"NACH", "debit", "ach_entity", "contains", "mutual fund", "investment", "inv_mf", false, false, true, 12, 0.85},
		{"NACH", "debit", "ach_entity", "contains", "sip", "investment", "inv_mf", false, false, true, 14, 0.80},
		{"CARD", "debit", "mcc", "exact", "5411", "groceries", "gr_supermarket", false, false, false, 20, 0.80},
		{"CARD", "debit", "mcc", "exact", "5812", "food_dining", "fd_restaurant", false, false, false, 22, 0.80},
		{"ATM", "debit", "mcc", "exact", "6011", "cash", "cash_atm", false, false, false, 24, 0.85},
		{"UPI", "debit", "counterparty", "contains", "cred club", "loan", "ln_credit_card", true, false, false, 30, 0.80},
		{"NACH", "debit", "description", "regex", `\bemi\b`, "loan", "ln_emi", false, true, false, 32, 0.80},
	}

	for _, r := range enrichmentRules {
		_, err := tx.Exec(`
			INSERT INTO enrichment_rules (channel, direction, field, operator, value,
				category_l1, category_l2, is_card_payment, is_loan_payment, is_investment,
				confidence, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullIfEmpty(r.channel), nullIfEmpty(r.direction), r.field, r.operator, r.value,
			r.categoryL1, r.categoryL2, r.card, r.loan, r.investment,
			r.confidence, r.priority)
		if err != nil {
			return fmt.Errorf("failed to seed enrichment rule %q: %w", r.value, err)
		}
	}

	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
