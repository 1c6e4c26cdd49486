package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/common"
	"github.com/paisaflow/paisaflow/internal/model"
	"github.com/paisaflow/paisaflow/internal/service"
)

func TestSaveTransactionsDedupe(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	saved, err := store.SaveTransactions(ctx, []model.Transaction{
		testTransaction("t1", "SWIGGY"),
		testTransaction("t2", "ZOMATO"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	// The same facts under a different id are recognized by the content
	// hash and skipped.
	duplicate := testTransaction("t3", "SWIGGY")
	saved, err = store.SaveTransactions(ctx, []model.Transaction{duplicate})
	require.NoError(t, err)
	assert.Zero(t, saved)

	// A different amount is a different fact.
	changed := testTransaction("t4", "SWIGGY")
	changed.Amount = 200.0
	saved, err = store.SaveTransactions(ctx, []model.Transaction{changed})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
}

func TestSaveTransactionsValidation(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	missingUser := testTransaction("t1", "SWIGGY")
	missingUser.UserID = ""
	_, err := store.SaveTransactions(ctx, []model.Transaction{missingUser})
	assert.Error(t, err)

	_, err = store.SaveTransactions(ctx, nil)
	assert.Error(t, err)
}

func TestGetTransactionByID(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	original := testTransaction("t1", "SWIGGY")
	original.Channel = model.ChannelUPI
	original.Counterparty = "swiggy limited"
	_, err := store.SaveTransactions(ctx, []model.Transaction{original})
	require.NoError(t, err)

	got, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, original.UserID, got.UserID)
	assert.Equal(t, original.MerchantRaw, got.MerchantRaw)
	assert.Equal(t, model.ChannelUPI, got.Channel)
	assert.Equal(t, "swiggy limited", got.Counterparty)
	assert.NotEmpty(t, got.Hash)
	assert.Equal(t, "INR", got.Currency, "currency defaults when absent")

	_, err = store.GetTransactionByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetTransactionsToEnrichCursor(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	transactions := []model.Transaction{
		testTransaction("a1", "SWIGGY"),
		testTransaction("a2", "ZOMATO"),
		testTransaction("a3", "UBER"),
	}
	// Distinct amounts keep the dedupe hash from collapsing them.
	for i := range transactions {
		transactions[i].Amount = float64(100 + i)
	}
	_, err := store.SaveTransactions(ctx, transactions)
	require.NoError(t, err)

	count, err := store.CountTransactionsToEnrich(ctx, service.EnrichFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	first, err := store.GetTransactionsToEnrich(ctx, service.EnrichFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := store.GetTransactionsToEnrich(ctx, service.EnrichFilter{Limit: 2, AfterID: first[1].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.NotEqual(t, first[0].ID, rest[0].ID)
	assert.NotEqual(t, first[1].ID, rest[0].ID)
}

func TestGetTransactionsToEnrichExcludesEnriched(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", "SWIGGY")})
	require.NoError(t, err)

	_, err = store.InsertEnrichment(ctx, &model.Enrichment{
		TransactionID: "t1",
		Category:      "food_dining",
		Type:          model.TypeWants,
		Source:        model.SourceMerchantExact,
		Confidence:    0.9,
	})
	require.NoError(t, err)

	count, err := store.CountTransactionsToEnrich(ctx, service.EnrichFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
