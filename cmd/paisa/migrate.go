package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/storage"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Create or upgrade the database schema, seeding the taxonomy and starter rules on first run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if status {
				version, err := store.SchemaVersion(ctx)
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				fmt.Printf("schema version: %d (expected: %d)\n", version, storage.ExpectedSchemaVersion)
				return nil
			}

			if err := store.Migrate(ctx); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render("✓ Database migrated"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "Show current schema version without migrating")

	return cmd
}
