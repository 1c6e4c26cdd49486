package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paisaflow/paisaflow/internal/model"
)

func setupTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testTransaction(id, merchant string) model.Transaction {
	return model.Transaction{
		ID:          id,
		UserID:      "u1",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount:      180.0,
		Direction:   model.DirectionDebit,
		Description: "POS " + merchant,
		MerchantRaw: merchant,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, ExpectedSchemaVersion, version)

	// Running migrations again is a no-op.
	require.NoError(t, store.Migrate(ctx))
}

func TestMigrateSeedsTaxonomy(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	categories, err := store.GetCategories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)

	merchants, err := store.GetActiveMerchants(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, merchants)

	rules, err := store.GetActivePatternRules(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rules)
}
