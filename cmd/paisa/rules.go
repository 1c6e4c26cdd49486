package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage pattern rules",
		Long:  `List, add, deactivate and validate the pattern rules used for transaction matching.`,
	}

	cmd.AddCommand(listRulesCmd())
	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(deactivateRuleCmd())
	cmd.AddCommand(validateRulesCmd())

	return cmd
}

func listRulesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pattern rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.ListPatternRules(ctx, all)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.InfoStyle.Render("No pattern rules found. Use 'paisa rules add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.PrimaryColor)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Scope"),
				headerStyle.Render("Field"),
				headerStyle.Render("Pattern"),
				headerStyle.Render("Category"),
				headerStyle.Render("Conf"),
				headerStyle.Render("Pri"),
				headerStyle.Render("Active"))

			for _, rule := range rules {
				category := rule.Category
				if rule.Subcategory != "" {
					category += "/" + rule.Subcategory
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%d\t%t\n",
					rule.ID, rule.Scope, rule.AppliesTo, rule.Pattern,
					category, rule.Confidence, rule.Priority, rule.IsActive)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include inactive rules")

	return cmd
}

func addRuleCmd() *cobra.Command {
	var (
		scope       string
		field       string
		category    string
		subcategory string
		typeStr     string
		confidence  float64
		priority    int
	)

	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a pattern rule",
		Long: `Create a pattern rule. The pattern is a case-insensitive regular
expression matched against the chosen field. Duplicate patterns for the same
scope and field are deduplicated, keeping the lowest-priority rule active.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule := &model.PatternRule{
				Scope:        scope,
				AppliesTo:    model.RuleField(field),
				Pattern:      args[0],
				Category:     category,
				Subcategory:  subcategory,
				TypeOverride: model.TransactionType(typeStr),
				Confidence:   confidence,
				Priority:     priority,
				Provenance:   model.ProvenanceOps,
				IsActive:     true,
			}
			if err := store.CreatePatternRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			if rule.IsActive {
				fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Created rule %d", rule.ID)))
			} else {
				fmt.Println(cli.WarningStyle.Render(fmt.Sprintf(
					"✓ Created rule %d (inactive: a stronger duplicate already exists)", rule.ID)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", model.ScopeGlobal, "Rule scope (global or a tenant id)")
	cmd.Flags().StringVar(&field, "field", string(model.FieldMerchant), "Field to match (merchant, description)")
	cmd.Flags().StringVar(&category, "category", "", "Category code to assign (required)")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "Subcategory code to assign")
	cmd.Flags().StringVar(&typeStr, "type", "", "Transaction type override")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "Rule confidence (0..1)")
	cmd.Flags().IntVar(&priority, "priority", 100, "Rule priority (lower wins)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func deactivateRuleCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a pattern rule",
		Long:  `Flag a pattern rule inactive. Rules are never deleted; the reason lands in the audit trail.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule ID: %w", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeactivatePatternRule(ctx, id, reason); err != nil {
				return fmt.Errorf("failed to deactivate rule: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Deactivated rule %d", id)))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "manual deactivation", "Reason recorded in the audit trail")

	return cmd
}

func validateRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate rules against the taxonomy",
		Long:  `Deactivate rules and strip merchant defaults whose category codes are no longer in the active taxonomy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := store.ValidateReferences(ctx)
			if err != nil {
				return err
			}

			if !report.Changed() {
				fmt.Println(cli.SuccessStyle.Render("✓ All rule references are valid"))
				return nil
			}

			var parts []string
			if report.PatternRulesDeactivated > 0 {
				parts = append(parts, fmt.Sprintf("%d pattern rules deactivated", report.PatternRulesDeactivated))
			}
			if report.EnrichmentRulesDeactivated > 0 {
				parts = append(parts, fmt.Sprintf("%d enrichment rules deactivated", report.EnrichmentRulesDeactivated))
			}
			if report.MerchantsStripped > 0 {
				parts = append(parts, fmt.Sprintf("%d merchants stripped of defaults", report.MerchantsStripped))
			}
			fmt.Println(cli.WarningStyle.Render("✓ Taxonomy drift corrected: " + strings.Join(parts, ", ")))
			return nil
		},
	}
}
