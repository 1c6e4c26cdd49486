package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paisaflow/paisaflow/internal/cli"
	"github.com/paisaflow/paisaflow/internal/engine"
	"github.com/paisaflow/paisaflow/internal/service"
)

func enrichCmd() *cobra.Command {
	var (
		userID    string
		fromStr   string
		toStr     string
		batchSize int
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich un-categorized transactions",
		Long: `Run the enrichment batch over every transaction that has no
enrichment yet. The batch is restartable: interrupting it loses no work and
re-running it never overwrites existing results.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			from, err := parseDateFlag(fromStr)
			if err != nil {
				return err
			}
			to, err := parseDateFlag(toStr)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if batchSize <= 0 {
				batchSize = viper.GetInt("enrich.batch_size")
			}
			if workers <= 0 {
				workers = viper.GetInt("enrich.workers")
			}
			if userID == "" {
				userID = viper.GetString("enrich.tenant")
			}

			eng := engine.NewEngine(store, slog.Default(), batchSize, workers)

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Enriching transactions...[reset]"),
			)
			var barTotal int
			progress := func(done, total int) {
				if total != barTotal {
					bar.ChangeMax(total)
					barTotal = total
				}
				_ = bar.Set(done)
			}

			stats, err := eng.Enrich(ctx, service.EnrichFilter{
				UserID: userID,
				From:   from,
				To:     to,
			}, progress)
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"✓ Enriched %d of %d transactions (%d skipped, %d failed) in %s",
				stats.Enriched, stats.Candidates, stats.Skipped, stats.Failed,
				stats.Duration.Round(10*time.Millisecond))))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Only enrich transactions for this user")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "End date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Candidate chunk size")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent enrichment workers")

	return cmd
}

func reenrichCmd() *cobra.Command {
	var idsStr string

	cmd := &cobra.Command{
		Use:   "reenrich",
		Short: "Recompute enrichment for specific transactions",
		Long:  `Recompute and overwrite the enrichment for explicitly named transactions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ids := splitIDs(idsStr)
			if len(ids) == 0 {
				return fmt.Errorf("--ids is required")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng := engine.NewEngine(store, slog.Default(), 0, 0)
			stats, err := eng.Reenrich(ctx, ids)
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf(
				"✓ Re-enriched %d of %d transactions (%d failed)",
				stats.Enriched, stats.Candidates, stats.Failed)))
			return nil
		},
	}

	cmd.Flags().StringVar(&idsStr, "ids", "", "Comma-separated transaction ids")

	return cmd
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
