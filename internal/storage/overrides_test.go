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

func testOverride(category string) *model.Override {
	return &model.Override{
		TransactionID: "t1",
		UserID:        "u1",
		Category:      category,
		Type:          model.TypeWants,
	}
}

func TestOverridesAppendOnlyLatestWins(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.SaveTransactions(ctx, []model.Transaction{testTransaction("t1", "SWIGGY")})
	require.NoError(t, err)

	first := testOverride("shopping")
	require.NoError(t, store.AppendOverride(ctx, first))
	second := testOverride("food_dining")
	require.NoError(t, store.AppendOverride(ctx, second))

	// Latest wins even when both rows share a creation timestamp.
	latest, err := store.GetLatestOverride(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "food_dining", latest.Category)

	// The full history survives, newest first.
	history, err := store.GetOverrides(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestGetLatestOverrideNotFound(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.GetLatestOverride(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestAppendOverrideValidation(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	missingCategory := testOverride("")
	assert.Error(t, store.AppendOverride(ctx, missingCategory))

	badType := testOverride("shopping")
	badType.Type = "no_such_type"
	assert.Error(t, store.AppendOverride(ctx, badType))
}
