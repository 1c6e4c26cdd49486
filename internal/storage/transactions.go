package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
	"github.com/paisaflow/paisaflow/internal/service"
)

// SaveTransactions saves multiple transactions, deduplicating on the
// transaction hash. Returns the number of rows actually inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, user_id, external_id, date, amount, direction, currency,
			description, merchant_raw, channel, counterparty, ach_entity, mcc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash(normalize.String(txn.MerchantRaw))
		}
		if txn.Currency == "" {
			txn.Currency = "INR"
		}

		result, execErr := stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.UserID,
			txn.ExternalID,
			txn.Date,
			txn.Amount,
			string(txn.Direction),
			txn.Currency,
			txn.Description,
			txn.MerchantRaw,
			string(txn.Channel),
			txn.Counterparty,
			txn.ACHEntity,
			txn.MCC,
		)
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, execErr)
		}
		affected, raErr := result.RowsAffected()
		if raErr != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", raErr)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

const transactionColumns = `id, hash, user_id, external_id, date, amount, direction, currency,
		description, merchant_raw, channel, counterparty, ach_entity, mcc`

const transactionColumnsT = `t.id, t.hash, t.user_id, t.external_id, t.date, t.amount, t.direction, t.currency,
		t.description, t.merchant_raw, t.channel, t.counterparty, t.ach_entity, t.mcc`

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	txn, err := scanTransactionFields(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions retrieves transactions matching the filter, ordered by
// date then id.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	query, args = appendDateScope(query, args, "", filter.UserID, filter.From, filter.To)
	query += ` ORDER BY date, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	return s.queryTransactions(ctx, query, args...)
}

// GetTransactionsToEnrich selects transactions lacking an enrichment row,
// bounded by the filter. The AfterID cursor makes chunked iteration
// restartable without offsets.
func (s *SQLiteStorage) GetTransactionsToEnrich(ctx context.Context, filter service.EnrichFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + transactionColumnsT + `
		FROM transactions t
		LEFT JOIN enrichments e ON e.transaction_id = t.id
		WHERE e.transaction_id IS NULL`
	var args []any
	if filter.AfterID != "" {
		query += ` AND t.id > ?`
		args = append(args, filter.AfterID)
	}
	query, args = appendDateScope(query, args, "t.", filter.UserID, filter.From, filter.To)
	query += ` ORDER BY t.id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryTransactions(ctx, query, args...)
}

// CountTransactionsToEnrich counts candidates for an enrichment batch.
func (s *SQLiteStorage) CountTransactionsToEnrich(ctx context.Context, filter service.EnrichFilter) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*)
		FROM transactions t
		LEFT JOIN enrichments e ON e.transaction_id = t.id
		WHERE e.transaction_id IS NULL`
	var args []any
	query, args = appendDateScope(query, args, "t.", filter.UserID, filter.From, filter.To)

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count enrichment candidates: %w", err)
	}
	return count, nil
}

func appendDateScope(query string, args []any, alias, userID string, from, to *time.Time) (string, []any) {
	if userID != "" {
		query += ` AND ` + alias + `user_id = ?`
		args = append(args, userID)
	}
	if from != nil {
		query += ` AND ` + alias + `date >= ?`
		args = append(args, *from)
	}
	if to != nil {
		query += ` AND ` + alias + `date <= ?`
		args = append(args, *to)
	}
	return query, args
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransactionFields(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionFields(scanner rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var externalID, currency, description, merchantRaw sql.NullString
	var channel, counterparty, achEntity, mcc sql.NullString
	var direction string

	err := scanner.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.UserID,
		&externalID,
		&txn.Date,
		&txn.Amount,
		&direction,
		&currency,
		&description,
		&merchantRaw,
		&channel,
		&counterparty,
		&achEntity,
		&mcc,
	)
	if err != nil {
		return nil, err
	}

	txn.Direction = model.TransactionDirection(direction)
	txn.ExternalID = externalID.String
	txn.Currency = currency.String
	txn.Description = description.String
	txn.MerchantRaw = merchantRaw.String
	txn.Channel = model.Channel(channel.String)
	txn.Counterparty = counterparty.String
	txn.ACHEntity = achEntity.String
	txn.MCC = mcc.String
	return &txn, nil
}
