package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/engine"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/service"
)

func effectiveCmd() *cobra.Command {
	var (
		txnID   string
		userID  string
		fromStr string
		toStr   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "effective",
		Short: "Show the effective categorization",
		Long: `Show the effective view of one transaction (--txn) or a range
(--user with optional --from/--to). Overrides win over computed enrichment,
which wins over the direction default.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if txnID == "" && userID == "" {
				return fmt.Errorf("either --txn or --user is required")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			view := engine.NewEffectiveView(store)

			var records []model.EffectiveTransaction
			if txnID != "" {
				record, err := view.Get(ctx, txnID)
				if err != nil {
					return fmt.Errorf("failed to resolve transaction %q: %w", txnID, err)
				}
				records = append(records, *record)
			} else {
				from, err := parseDateFlag(fromStr)
				if err != nil {
					return err
				}
				to, err := parseDateFlag(toStr)
				if err != nil {
					return err
				}
				records, err = view.List(ctx, service.TransactionFilter{
					UserID: userID,
					From:   from,
					To:     to,
					Limit:  limit,
				})
				if err != nil {
					return fmt.Errorf("failed to resolve transactions: %w", err)
				}
			}

			if len(records) == 0 {
				fmt.Println(cli.InfoStyle.Render("No transactions found."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("Date"),
				headerStyle.Render("Description"),
				headerStyle.Render("Amount"),
				headerStyle.Render("Category"),
				headerStyle.Render("Type"),
				headerStyle.Render("Merchant"),
				headerStyle.Render("Source"),
				headerStyle.Render("Conf"))

			for _, record := range records {
				category := record.Category
				if record.Subcategory != "" {
					category += "/" + record.Subcategory
				}
				merchant := record.MerchantName
				if merchant == "" {
					merchant = cli.SubtleStyle.Render("(unresolved)")
				}
				amount := fmt.Sprintf("%.2f", record.Amount)
				if record.Direction == model.DirectionDebit {
					amount = "-" + amount
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
					record.Date.Format("2006-01-02"), record.Description, amount,
					category, record.Type, merchant, record.Source, record.Confidence)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&txnID, "txn", "", "Single transaction id")
	cmd.Flags().StringVar(&userID, "user", "", "List transactions for this user")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows to show")

	return cmd
}
