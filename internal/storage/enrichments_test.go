package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
)

func testEnrichment(category string) *model.Enrichment {
	return &model.Enrichment{
		TransactionID: "t1",
		Category:      category,
		Subcategory:   "fd_online",
		Type:          model.TypeWants,
		Source:        model.SourceMerchantExact,
		MerchantCode:  "swiggy",
		Confidence:    0.90,
	}
}

func TestInsertEnrichmentIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", "SWIGGY")})
	require.NoError(t, err)

	inserted, err := store.InsertEnrichment(ctx, testEnrichment("food_dining"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// A competing write for the same transaction is ignored.
	inserted, err = store.InsertEnrichment(ctx, testEnrichment("shopping"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.GetEnrichment(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "food_dining", got.Category, "first write wins")
	assert.False(t, got.EnrichedAt.IsZero())
}

func TestReplaceEnrichment(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", "SWIGGY")})
	require.NoError(t, err)

	_, err = store.InsertEnrichment(ctx, testEnrichment("food_dining"))
	require.NoError(t, err)

	replacement := testEnrichment("shopping")
	replacement.Subcategory = "shop_online"
	require.NoError(t, store.ReplaceEnrichment(ctx, replacement))

	got, err := store.GetEnrichment(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "shopping", got.Category)
	assert.Equal(t, "shop_online", got.Subcategory)
}

func TestGetEnrichmentNotFound(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.GetEnrichment(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestInsertEnrichmentValidation(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	badType := testEnrichment("food_dining")
	badType.Type = "no_such_type"
	_, err := store.InsertEnrichment(ctx, badType)
	assert.Error(t, err)

	badConfidence := testEnrichment("food_dining")
	badConfidence.Confidence = 1.5
	_, err = store.InsertEnrichment(ctx, badConfidence)
	assert.Error(t, err)
}
