package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/model"
)

func importCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import parsed transactions from a CSV file",
		Long: `Load already-parsed transaction records from a CSV file. Required
columns: user_id (or --user), date, amount, direction, description. Optional:
id, external_id, merchant, currency, channel, counterparty, ach_entity, mcc.
Records are deduplicated on a content hash, so re-importing is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = file.Close() }()

			transactions, err := readTransactionsCSV(file, userID)
			if err != nil {
				return err
			}

			saved, err := store.SaveTransactions(ctx, transactions)
			if err != nil {
				return fmt.Errorf("failed to save transactions: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Imported %d transactions (%d duplicates skipped)",
				saved, len(transactions)-saved)))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User to attribute rows to when the CSV has no user_id column")

	return cmd
}

func readTransactionsCSV(r io.Reader, defaultUserID string) ([]model.Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "amount", "direction", "description"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var transactions []model.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		line++

		date, err := time.Parse("2006-01-02", field(record, "date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}
		amount, err := strconv.ParseFloat(field(record, "amount"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount: %w", line, err)
		}

		txn := model.Transaction{
			ID:           field(record, "id"),
			UserID:       field(record, "user_id"),
			ExternalID:   field(record, "external_id"),
			Date:         date,
			Amount:       amount,
			Direction:    model.TransactionDirection(strings.ToLower(field(record, "direction"))),
			Description:  field(record, "description"),
			MerchantRaw:  field(record, "merchant"),
			Currency:     field(record, "currency"),
			Channel:      model.Channel(strings.ToUpper(field(record, "channel"))),
			Counterparty: field(record, "counterparty"),
			ACHEntity:    field(record, "ach_entity"),
			MCC:          field(record, "mcc"),
		}
		if txn.ID == "" {
			txn.ID = uuid.New().String()
		}
		if txn.UserID == "" {
			txn.UserID = defaultUserID
		}
		if txn.UserID == "" {
			return nil, fmt.Errorf("line %d: no user_id column and no --user flag", line)
		}

		transactions = append(transactions, txn)
	}

	return transactions, nil
}
