package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/paisaflow/paisaflow/internal/model"
)

func effectiveFixture() (model.Transaction, *model.Enrichment) {
	txn := model.Transaction{
		ID:        "t1",
		UserID:    "u1",
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount:    499.0,
		Direction: model.DirectionDebit,
		Currency:  "INR",
	}
	enrichment := &model.Enrichment{
		TransactionID: "t1",
		Category:      "food_dining",
		Subcategory:   "fd_online",
		Type:          model.TypeWants,
		Source:        model.SourceMerchantExact,
		MerchantCode:  "swiggy",
		Confidence:    0.90,
	}
	return txn, enrichment
}

func TestEffectiveOverrideWins(t *testing.T) {
	txn, enrichment := effectiveFixture()
	override := &model.Override{
		TransactionID: "t1",
		UserID:        "u1",
		Category:      "shopping",
		Subcategory:   "shop_clothing",
		Type:          model.TypeWants,
	}

	effective := Effective(txn, enrichment, override)

	assert.Equal(t, "shopping", effective.Category)
	assert.Equal(t, "shop_clothing", effective.Subcategory)
	assert.Equal(t, model.SourceOverride, effective.Source)
	assert.InDelta(t, 1.0, effective.Confidence, 1e-9)
	assert.Equal(t, "swiggy", effective.MerchantCode, "override keeps the resolved merchant")
}

func TestEffectiveEnrichmentWithoutOverride(t *testing.T) {
	txn, enrichment := effectiveFixture()

	effective := Effective(txn, enrichment, nil)

	assert.Equal(t, "food_dining", effective.Category)
	assert.Equal(t, "fd_online", effective.Subcategory)
	assert.Equal(t, model.SourceMerchantExact, effective.Source)
	assert.InDelta(t, 0.90, effective.Confidence, 1e-9)
}

func TestEffectiveDirectionDefaultWhenNothingComputed(t *testing.T) {
	txn, _ := effectiveFixture()

	effective := Effective(txn, nil, nil)

	assert.Equal(t, model.UncategorizedCode, effective.Category)
	assert.Equal(t, model.TypeWants, effective.Type)
	assert.Equal(t, model.SourceDirection, effective.Source)
	assert.InDelta(t, 0.30, effective.Confidence, 1e-9)
}

func TestEffectiveUnresolvedCategoryCollapsesToUncategorized(t *testing.T) {
	txn, _ := effectiveFixture()
	txn.Direction = model.DirectionCredit
	enrichment := &model.Enrichment{
		TransactionID: "t1",
		Type:          model.TypeIncome,
		Source:        model.SourceDirection,
		Confidence:    0.30,
	}

	effective := Effective(txn, enrichment, nil)

	assert.Equal(t, model.UncategorizedCode, effective.Category)
	assert.Equal(t, model.TypeIncome, effective.Type)
}

func TestEffectiveCarriesTransactionFields(t *testing.T) {
	txn, enrichment := effectiveFixture()
	txn.Description = "POS SWIGGY BANGALORE"

	effective := Effective(txn, enrichment, nil)

	assert.Equal(t, txn.ID, effective.TransactionID)
	assert.Equal(t, txn.UserID, effective.UserID)
	assert.Equal(t, txn.Date, effective.Date)
	assert.Equal(t, txn.Description, effective.Description)
	assert.Equal(t, txn.Currency, effective.Currency)
	assert.Equal(t, txn.Direction, effective.Direction)
	assert.InDelta(t, txn.Amount, effective.Amount, 1e-9)
}
