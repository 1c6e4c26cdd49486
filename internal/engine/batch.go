package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/match"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
	"github.com/paisaflow/paisaflow/internal/rules"
	"github.com/paisaflow/paisaflow/internal/service"
)

const (
	defaultBatchSize = 500
	defaultWorkers   = 4
)

// BatchStats summarizes one enrichment run.
type BatchStats struct {
	Duration   time.Duration
	Candidates int
	Enriched   int
	Skipped    int // already enriched by a concurrent or earlier run
	Failed     int
	Generation uint64 // rule snapshot generation the run was pinned to
}

// ProgressFunc receives batch progress after each processed transaction.
type ProgressFunc func(done, total int)

// Engine runs enrichment batches against a storage backend.
type Engine struct {
	store     service.Storage
	logger    *slog.Logger
	batchSize int
	workers   int
}

// NewEngine creates an enrichment engine. Zero batchSize or workers fall
// back to defaults.
func NewEngine(store service.Storage, logger *slog.Logger, batchSize, workers int) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		logger:    logger,
		batchSize: batchSize,
		workers:   workers,
	}
}

// Enrich processes every un-enriched transaction matching the filter. The
// run is restartable: writes are insert-if-absent, and candidate selection
// walks a transaction id cursor, so a crashed or cancelled run picks up
// where it left off. One rule snapshot is pinned for the whole run.
func (e *Engine) Enrich(ctx context.Context, filter service.EnrichFilter, progress ProgressFunc) (*BatchStats, error) {
	start := time.Now()

	// Heal taxonomy drift before pinning the snapshot so the run never
	// resolves against rules pointing at dead categories.
	if _, err := e.Validate(ctx); err != nil {
		return nil, err
	}

	resolver, generation, err := e.buildResolver(ctx)
	if err != nil {
		return nil, err
	}

	total, err := e.store.CountTransactionsToEnrich(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}

	stats := &BatchStats{Candidates: total, Generation: generation}
	e.logger.Info("starting enrichment batch",
		"candidates", total,
		"generation", generation,
		"workers", e.workers)

	var mu sync.Mutex
	done := 0
	seenMerchants := make(map[string]bool)

	filter.Limit = e.batchSize
	for {
		chunk, err := e.store.GetTransactionsToEnrich(ctx, filter)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch candidates: %w", err)
		}
		if len(chunk) == 0 {
			break
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(e.workers)
		for _, txn := range chunk {
			txn := txn
			group.Go(func() error {
				outcome := e.processOne(groupCtx, resolver, txn, seenMerchants, &mu)

				mu.Lock()
				done++
				current := done
				switch outcome {
				case outcomeEnriched:
					stats.Enriched++
				case outcomeSkipped:
					stats.Skipped++
				case outcomeFailed:
					stats.Failed++
				}
				mu.Unlock()

				if progress != nil {
					progress(current, total)
				}
				return groupCtx.Err()
			})
		}
		if err := group.Wait(); err != nil {
			return stats, err
		}

		filter.AfterID = chunk[len(chunk)-1].ID
	}

	stats.Duration = time.Since(start)
	e.logger.Info("enrichment batch complete",
		"enriched", stats.Enriched,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, nil
}

// Reenrich recomputes enrichment for explicitly named transactions,
// overwriting any existing rows.
func (e *Engine) Reenrich(ctx context.Context, ids []string) (*BatchStats, error) {
	start := time.Now()

	if _, err := e.Validate(ctx); err != nil {
		return nil, err
	}

	resolver, generation, err := e.buildResolver(ctx)
	if err != nil {
		return nil, err
	}

	stats := &BatchStats{Candidates: len(ids), Generation: generation}
	for _, id := range ids {
		txn, err := e.store.GetTransactionByID(ctx, id)
		if err != nil {
			e.logger.Warn("skipping unknown transaction", "transaction_id", id, "error", err)
			stats.Failed++
			continue
		}

		enrichment := resolver.Resolve(*txn)
		if err := e.store.ReplaceEnrichment(ctx, &enrichment); err != nil {
			e.logger.Error("failed to replace enrichment", "transaction_id", id, "error", err)
			stats.Failed++
			continue
		}
		stats.Enriched++
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

type outcome int

const (
	outcomeEnriched outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (e *Engine) processOne(ctx context.Context, resolver *Resolver, txn model.Transaction, seenMerchants map[string]bool, mu *sync.Mutex) outcome {
	enrichment := resolver.Resolve(txn)

	var inserted bool
	err := common.WithRetry(ctx, func() error {
		var err error
		inserted, err = e.store.InsertEnrichment(ctx, &enrichment)
		return err
	}, common.RetryOptions{})
	if err != nil {
		// A single bad transaction never fails the batch.
		e.logger.Error("failed to enrich transaction",
			"transaction_id", txn.ID,
			"error", err)
		return outcomeFailed
	}
	if !inserted {
		return outcomeSkipped
	}

	if enrichment.MerchantCode == "" {
		e.recordUnknownMerchant(ctx, txn, seenMerchants, mu)
	}
	return outcomeEnriched
}

// recordUnknownMerchant stores an inactive stub row the first time an
// unmatched merchant string is seen, so the dimension accumulates curation
// candidates as batches run.
func (e *Engine) recordUnknownMerchant(ctx context.Context, txn model.Transaction, seenMerchants map[string]bool, mu *sync.Mutex) {
	raw := txn.MerchantRaw
	if raw == "" {
		return
	}
	normalized := normalize.String(raw)
	if normalized == "" {
		return
	}

	mu.Lock()
	if seenMerchants[normalized] {
		mu.Unlock()
		return
	}
	seenMerchants[normalized] = true
	mu.Unlock()

	stub := &model.Merchant{
		Code:           merchantCodeFor(normalized),
		DisplayName:    raw,
		NormalizedName: normalized,
		IsActive:       false,
	}
	if _, err := e.store.InsertMerchantIfAbsent(ctx, stub); err != nil {
		e.logger.Warn("failed to record unknown merchant",
			"merchant", normalized,
			"error", err)
	}
}

func merchantCodeFor(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "_")
}

// buildResolver loads one consistent snapshot of rules, merchants and
// taxonomy, quarantining rules the compilers rejected.
func (e *Engine) buildResolver(ctx context.Context) (*Resolver, uint64, error) {
	patternRules, err := e.store.GetActivePatternRules(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load pattern rules: %w", err)
	}
	snapshot := rules.NewSnapshot(patternRules)
	for _, invalid := range snapshot.Invalid() {
		e.logger.Warn("quarantining pattern rule", "rule_id", invalid.RuleID, "reason", invalid.Reason)
		if err := e.store.DeactivatePatternRule(ctx, invalid.RuleID, invalid.Reason); err != nil {
			e.logger.Error("failed to deactivate pattern rule", "rule_id", invalid.RuleID, "error", err)
		}
	}

	enrichmentRules, err := e.store.GetActiveEnrichmentRules(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load enrichment rules: %w", err)
	}
	evaluator := rules.NewEvaluator(enrichmentRules)
	for _, invalid := range evaluator.Invalid() {
		e.logger.Warn("quarantining enrichment rule", "rule_id", invalid.RuleID, "reason", invalid.Reason)
		if err := e.store.DeactivateEnrichmentRule(ctx, invalid.RuleID, invalid.Reason); err != nil {
			e.logger.Error("failed to deactivate enrichment rule", "rule_id", invalid.RuleID, "error", err)
		}
	}

	merchants, err := e.store.GetActiveMerchants(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load merchants: %w", err)
	}
	aliases, err := e.store.GetMerchantAliases(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load merchant aliases: %w", err)
	}
	matcher := match.NewMatcher(merchants, aliases, snapshot)

	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load categories: %w", err)
	}

	return NewResolver(snapshot, matcher, evaluator, categories), snapshot.Generation(), nil
}

// Validate runs the taxonomy reference pass and reports what changed.
func (e *Engine) Validate(ctx context.Context) (*service.ValidationReport, error) {
	report, err := e.store.ValidateReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("reference validation failed: %w", err)
	}
	if report.Changed() {
		e.logger.Warn("taxonomy drift corrected",
			"pattern_rules_deactivated", report.PatternRulesDeactivated,
			"enrichment_rules_deactivated", report.EnrichmentRulesDeactivated,
			"merchants_stripped", report.MerchantsStripped)
	}
	return report, nil
}
