package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/service"
)

// Effective composes the read-time view for one transaction: the latest
// override wins, then the computed enrichment, then a bare direction
// default. Category is never empty in the result; unresolved collapses to
// the uncategorized code. Either enrichment or override may be nil.
func Effective(txn model.Transaction, enrichment *model.Enrichment, override *model.Override) model.EffectiveTransaction {
	effective := model.EffectiveTransaction{
		Date:          txn.Date,
		TransactionID: txn.ID,
		UserID:        txn.UserID,
		Description:   txn.Description,
		Currency:      txn.Currency,
		Direction:     txn.Direction,
		Amount:        txn.Amount,
	}

	switch {
	case override != nil:
		effective.Category = override.Category
		effective.Subcategory = override.Subcategory
		effective.Type = override.Type
		effective.Source = model.SourceOverride
		effective.Confidence = 1.0
		if enrichment != nil {
			effective.MerchantCode = enrichment.MerchantCode
		}
	case enrichment != nil:
		effective.Category = enrichment.Category
		effective.Subcategory = enrichment.Subcategory
		effective.Type = enrichment.Type
		effective.Source = enrichment.Source
		effective.Confidence = enrichment.Confidence
		effective.MerchantCode = enrichment.MerchantCode
	default:
		effective.Type = model.DefaultTypeForDirection(txn.Direction)
		effective.Source = model.SourceDirection
		effective.Confidence = directionFallbackConfidence
	}

	if effective.Category == "" {
		effective.Category = model.UncategorizedCode
	}
	if !model.ValidTransactionType(effective.Type) {
		effective.Type = model.DefaultTypeForDirection(txn.Direction)
	}
	return effective
}

// EffectiveView reads effective transactions out of storage.
type EffectiveView struct {
	store service.Storage
}

// NewEffectiveView creates an effective view over the given storage.
func NewEffectiveView(store service.Storage) *EffectiveView {
	return &EffectiveView{store: store}
}

// Get composes the effective record for one transaction id.
func (v *EffectiveView) Get(ctx context.Context, transactionID string) (*model.EffectiveTransaction, error) {
	txn, err := v.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	effective, err := v.compose(ctx, *txn)
	if err != nil {
		return nil, err
	}
	return &effective, nil
}

// List composes effective records for all transactions matching the filter.
func (v *EffectiveView) List(ctx context.Context, filter service.TransactionFilter) ([]model.EffectiveTransaction, error) {
	txns, err := v.store.GetTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	effectives := make([]model.EffectiveTransaction, 0, len(txns))
	for _, txn := range txns {
		effective, err := v.compose(ctx, txn)
		if err != nil {
			return nil, err
		}
		effectives = append(effectives, effective)
	}
	return effectives, nil
}

func (v *EffectiveView) compose(ctx context.Context, txn model.Transaction) (model.EffectiveTransaction, error) {
	enrichment, err := v.store.GetEnrichment(ctx, txn.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return model.EffectiveTransaction{}, fmt.Errorf("failed to read enrichment for %s: %w", txn.ID, err)
	}

	override, err := v.store.GetLatestOverride(ctx, txn.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return model.EffectiveTransaction{}, fmt.Errorf("failed to read override for %s: %w", txn.ID, err)
	}

	effective := Effective(txn, enrichment, override)
	if effective.MerchantCode != "" {
		if merchant, err := v.store.GetMerchantByCode(ctx, effective.MerchantCode); err == nil {
			effective.MerchantName = merchant.DisplayName
		}
	}
	return effective, nil
}
