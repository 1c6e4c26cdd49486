// Package engine resolves transactions to category labels by running the
// pattern rule snapshot, the merchant matcher cascade and the generic
// enrichment rules in precedence order.
package engine

import (
	"github.com/paisaflow/paisaflow/internal/match"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/normalize"
	"github.com/paisaflow/paisaflow/internal/rules"
)

const directionFallbackConfidence = 0.30

// Resolver holds one consistent view of the rule and merchant state. It is
// immutable once built and safe for concurrent use across workers.
type Resolver struct {
	snapshot   *rules.Snapshot
	matcher    *match.Matcher
	evaluator  *rules.Evaluator
	categories map[string]model.Category
}

// NewResolver builds a resolver from a loaded rule snapshot, merchant
// matcher and enrichment rule evaluator. categories maps active category
// codes to their definitions for default type resolution.
func NewResolver(snapshot *rules.Snapshot, matcher *match.Matcher, evaluator *rules.Evaluator, categories []model.Category) *Resolver {
	byCode := make(map[string]model.Category, len(categories))
	for _, category := range categories {
		byCode[category.Code] = category
	}
	return &Resolver{
		snapshot:   snapshot,
		matcher:    matcher,
		evaluator:  evaluator,
		categories: byCode,
	}
}

// Resolve produces the enrichment for a transaction. Category may end up
// empty (unresolved) but Type never does: it falls through rule override,
// merchant default, category default and finally the direction default.
func (r *Resolver) Resolve(txn model.Transaction) model.Enrichment {
	merchantInput := txn.MerchantRaw
	if merchantInput == "" {
		merchantInput = txn.Description
	}
	merchantInput = normalize.String(merchantInput)
	description := normalize.String(txn.Description)

	// Stage 1: explicit pattern rules beat everything below.
	if rule := r.snapshot.Match(merchantInput, description, txn.UserID); rule != nil {
		return r.fromPatternRule(txn, rule)
	}

	// Stage 2: merchant dimension cascade.
	if result := r.matcher.Match(merchantInput, txn.UserID); result != nil {
		return r.fromMerchantMatch(txn, result)
	}

	// Stage 3: generic enrichment rules, only when the transaction actually
	// carries parsed metadata to evaluate.
	if txn.HasParsedMetadata() {
		eval := r.evaluator.Evaluate(txn)
		return r.fromEvalResult(txn, eval)
	}

	return r.directionFallback(txn)
}

func (r *Resolver) fromPatternRule(txn model.Transaction, rule *model.PatternRule) model.Enrichment {
	return model.Enrichment{
		TransactionID: txn.ID,
		Category:      rule.Category,
		Subcategory:   rule.Subcategory,
		Type:          r.resolveType(txn, rule.TypeOverride, "", rule.Category),
		Source:        model.SourcePatternRule,
		Confidence:    rule.Confidence,
		RuleID:        rule.ID,
	}
}

func (r *Resolver) fromMerchantMatch(txn model.Transaction, result *match.Result) model.Enrichment {
	enrichment := model.Enrichment{
		TransactionID: txn.ID,
		Source:        sourceForStage(result.Stage),
		Confidence:    result.Confidence,
	}

	if result.Rule != nil {
		// The exact stage hit a literal merchant rule rather than a
		// dimension row.
		enrichment.Category = result.Rule.Category
		enrichment.Subcategory = result.Rule.Subcategory
		enrichment.Type = r.resolveType(txn, result.Rule.TypeOverride, "", result.Rule.Category)
		enrichment.RuleID = result.Rule.ID
		return enrichment
	}

	merchant := result.Merchant
	enrichment.MerchantCode = merchant.Code
	enrichment.Category = merchant.DefaultCategory
	enrichment.Subcategory = merchant.DefaultSubcategory
	enrichment.Type = r.resolveType(txn, "", merchant.DefaultType, merchant.DefaultCategory)
	return enrichment
}

func (r *Resolver) fromEvalResult(txn model.Transaction, eval rules.EvalResult) model.Enrichment {
	source := model.SourceEnrichmentRule
	if eval.Default {
		source = model.SourceDirection
	}
	return model.Enrichment{
		TransactionID: txn.ID,
		Category:      eval.Category,
		Subcategory:   eval.Subcategory,
		Type:          r.resolveType(txn, eval.Type, "", eval.Category),
		Source:        source,
		Confidence:    eval.Confidence,
		RuleID:        eval.RuleID,
	}
}

// directionFallback applies when nothing matched and there is no parsed
// metadata to evaluate. Category stays unresolved; only the type is derived.
func (r *Resolver) directionFallback(txn model.Transaction) model.Enrichment {
	return model.Enrichment{
		TransactionID: txn.ID,
		Type:          model.DefaultTypeForDirection(txn.Direction),
		Source:        model.SourceDirection,
		Confidence:    directionFallbackConfidence,
	}
}

// resolveType walks the type precedence chain: rule override, merchant
// default, category default, then the direction default. The result is
// always a valid type.
func (r *Resolver) resolveType(txn model.Transaction, override, merchantDefault model.TransactionType, category string) model.TransactionType {
	if model.ValidTransactionType(override) {
		return override
	}
	if model.ValidTransactionType(merchantDefault) {
		return merchantDefault
	}
	if cat, ok := r.categories[category]; ok && model.ValidTransactionType(cat.DefaultType) {
		return cat.DefaultType
	}
	return model.DefaultTypeForDirection(txn.Direction)
}

func sourceForStage(stage match.Stage) model.EnrichmentSource {
	switch stage {
	case match.StageExact:
		return model.SourceMerchantExact
	case match.StageFuzzy:
		return model.SourceMerchantFuzzy
	case match.StageKeyword:
		return model.SourceMerchantKeyword
	case match.StageAlias:
		return model.SourceMerchantAlias
	default:
		return model.SourceMerchantExact
	}
}
