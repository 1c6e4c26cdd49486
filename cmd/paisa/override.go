package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/model"
)

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage user category corrections",
		Long:  `Record and inspect append-only category corrections. The latest correction always wins over computed enrichment.`,
	}

	cmd.AddCommand(addOverrideCmd())
	cmd.AddCommand(listOverridesCmd())

	return cmd
}

func addOverrideCmd() *cobra.Command {
	var (
		txnID       string
		userID      string
		category    string
		subcategory string
		typeStr     string
		reason      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a correction for a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn, err := store.GetTransactionByID(ctx, txnID)
			if err != nil {
				return fmt.Errorf("failed to find transaction %q: %w", txnID, err)
			}
			if userID == "" {
				userID = txn.UserID
			}

			overrideType := model.TransactionType(typeStr)
			if typeStr == "" {
				overrideType = model.DefaultTypeForDirection(txn.Direction)
			}

			override := &model.Override{
				TransactionID: txnID,
				UserID:        userID,
				Category:      category,
				Subcategory:   subcategory,
				Type:          overrideType,
				Reason:        reason,
			}
			if err := store.AppendOverride(ctx, override); err != nil {
				return fmt.Errorf("failed to record override: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"✓ Recorded override %d for transaction %s", override.ID, txnID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&txnID, "txn", "", "Transaction id (required)")
	cmd.Flags().StringVar(&userID, "user", "", "User recording the correction (defaults to the transaction's user)")
	cmd.Flags().StringVar(&category, "category", "", "Corrected category code (required)")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "Corrected subcategory code")
	cmd.Flags().StringVar(&typeStr, "type", "", "Corrected transaction type")
	cmd.Flags().StringVar(&reason, "reason", "", "Free-form reason")
	_ = cmd.MarkFlagRequired("txn")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func listOverridesCmd() *cobra.Command {
	var txnID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the correction history for a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			overrides, err := store.GetOverrides(ctx, txnID)
			if err != nil {
				return fmt.Errorf("failed to list overrides: %w", err)
			}

			if len(overrides) == 0 {
				fmt.Println(cli.InfoStyle.Render("No overrides recorded for this transaction."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("When"),
				headerStyle.Render("User"),
				headerStyle.Render("Category"),
				headerStyle.Render("Type"),
				headerStyle.Render("Reason"))

			for i, override := range overrides {
				category := override.Category
				if override.Subcategory != "" {
					category += "/" + override.Subcategory
				}
				marker := ""
				if i == 0 {
					marker = " " + cli.SuccessStyle.Render("(effective)")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s%s\n",
					override.ID, override.CreatedAt.Format("2006-01-02 15:04"),
					override.UserID, category, override.Type, override.Reason, marker)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&txnID, "txn", "", "Transaction id (required)")
	_ = cmd.MarkFlagRequired("txn")

	return cmd
}
