package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
)

func merchantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchants",
		Short: "Manage the merchant dimension",
		Long:  `List and curate canonical merchants, their keywords and aliases.`,
	}

	cmd.AddCommand(listMerchantsCmd())
	cmd.AddCommand(addMerchantCmd())
	cmd.AddCommand(aliasMerchantCmd())

	return cmd
}

func listMerchantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List merchants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			merchants, err := store.ListMerchants(ctx)
			if err != nil {
				return fmt.Errorf("failed to list merchants: %w", err)
			}

			if len(merchants) == 0 {
				fmt.Println(cli.InfoStyle.Render("No merchants found. Use 'paisa merchants add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("Code"),
				headerStyle.Render("Name"),
				headerStyle.Render("Category"),
				headerStyle.Render("Type"),
				headerStyle.Render("Keywords"),
				headerStyle.Render("Active"))

			for _, merchant := range merchants {
				category := merchant.DefaultCategory
				if merchant.DefaultSubcategory != "" {
					category += "/" + merchant.DefaultSubcategory
				}
				if category == "" {
					category = cli.SubtleStyle.Render("(none)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
					merchant.Code, merchant.DisplayName, category,
					merchant.DefaultType, strings.Join(merchant.Keywords, ","), merchant.IsActive)
			}

			return nil
		},
	}
}

func addMerchantCmd() *cobra.Command {
	var (
		code        string
		category    string
		subcategory string
		typeStr     string
		keywords    []string
	)

	cmd := &cobra.Command{
		Use:   "add <display name>",
		Short: "Add or update a merchant",
		Long: `Create a canonical merchant, or update the one whose normalized name
already matches. Keyword changes regenerate the merchant's alias index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			displayName := args[0]
			if code == "" {
				code = strings.ReplaceAll(normalize.String(displayName), " ", "_")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			merchant := &model.Merchant{
				Code:               code,
				DisplayName:        displayName,
				NormalizedName:     normalize.String(displayName),
				Keywords:           keywords,
				DefaultCategory:    category,
				DefaultSubcategory: subcategory,
				DefaultType:        model.TransactionType(typeStr),
				IsActive:           true,
			}
			if err := store.SaveMerchant(ctx, merchant); err != nil {
				return fmt.Errorf("failed to save merchant: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Saved merchant %q", merchant.Code)))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Merchant code (derived from the name when omitted)")
	cmd.Flags().StringVar(&category, "category", "", "Default category code")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "Default subcategory code")
	cmd.Flags().StringVar(&typeStr, "type", "", "Default transaction type")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Brand keywords used by the matcher")

	return cmd
}

func aliasMerchantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias <code> <alias>",
		Short: "Add an alias keyword to a merchant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			merchant, err := store.GetMerchantByCode(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find merchant %q: %w", args[0], err)
			}

			alias := args[1]
			for _, keyword := range merchant.Keywords {
				if normalize.String(keyword) == normalize.String(alias) {
					fmt.Println(cli.InfoStyle.Render(fmt.Sprintf("Merchant %q already has alias %q", merchant.Code, alias)))
					return nil
				}
			}
			merchant.Keywords = append(merchant.Keywords, alias)

			if err := store.SaveMerchant(ctx, merchant); err != nil {
				return fmt.Errorf("failed to save merchant: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Added alias %q to %q", alias, merchant.Code)))
			return nil
		},
	}
}
