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

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category taxonomy",
		Long:  `Display all active categories with their subcategories and default transaction types.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			subcategories, err := store.GetSubcategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get subcategories: %w", err)
			}

			byCategory := make(map[string][]model.Subcategory)
			for _, sub := range subcategories {
				byCategory[sub.CategoryCode] = append(byCategory[sub.CategoryCode], sub)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("Code"),
				headerStyle.Render("Name"),
				headerStyle.Render("Default Type"),
				headerStyle.Render("Subcategories"))

			for _, category := range categories {
				subs := ""
				for i, sub := range byCategory[category.Code] {
					if i > 0 {
						subs += ", "
					}
					subs += sub.Code
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					category.Code, category.Name, category.DefaultType, subs)
			}

			return nil
		},
	}
}
