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

func TestSaveMerchantCreatesAliases(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	merchant := &model.Merchant{
		Code:               "myntra",
		DisplayName:        "Myntra",
		NormalizedName:     "myntra",
		Keywords:           []string{"myntra", "mntra designs"},
		DefaultCategory:    "shopping",
		DefaultSubcategory: "shop_clothing",
		IsActive:           true,
	}
	require.NoError(t, store.SaveMerchant(ctx, merchant))

	aliases, err := store.GetMerchantAliases(ctx)
	require.NoError(t, err)

	var mine []model.MerchantAlias
	for _, alias := range aliases {
		if alias.MerchantCode == "myntra" {
			mine = append(mine, alias)
		}
	}
	require.Len(t, mine, 2, "display name and distinct keywords become aliases")
}

func TestSaveMerchantUpsertsOnNormalizedName(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	original := &model.Merchant{
		Code:            "myntra",
		DisplayName:     "Myntra",
		NormalizedName:  "myntra",
		DefaultCategory: "shopping",
		IsActive:        true,
	}
	require.NoError(t, store.SaveMerchant(ctx, original))

	// Saving again with the same normalized name updates in place.
	updated := &model.Merchant{
		Code:               "myntra-v2",
		DisplayName:        "MYNTRA",
		NormalizedName:     "myntra",
		Keywords:           []string{"myntra"},
		DefaultCategory:    "shopping",
		DefaultSubcategory: "shop_clothing",
		IsActive:           true,
	}
	require.NoError(t, store.SaveMerchant(ctx, updated))
	assert.Equal(t, "myntra", updated.Code, "canonical code survives the upsert")

	got, err := store.GetMerchantByCode(ctx, "myntra")
	require.NoError(t, err)
	assert.Equal(t, "shop_clothing", got.DefaultSubcategory)
}

func TestInsertMerchantIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	stub := &model.Merchant{
		Code:           "zvqx_vendor",
		DisplayName:    "ZVQX VENDOR",
		NormalizedName: "zvqx vendor",
	}
	inserted, err := store.InsertMerchantIfAbsent(ctx, stub)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertMerchantIfAbsent(ctx, stub)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestGetMerchantByCodeNotFound(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.GetMerchantByCode(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestGetActiveMerchantsExcludesInactive(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	stub := &model.Merchant{
		Code:           "zvqx_vendor",
		DisplayName:    "ZVQX VENDOR",
		NormalizedName: "zvqx vendor",
	}
	_, err := store.InsertMerchantIfAbsent(ctx, stub)
	require.NoError(t, err)

	active, err := store.GetActiveMerchants(ctx)
	require.NoError(t, err)
	for _, merchant := range active {
		assert.NotEqual(t, "zvqx_vendor", merchant.Code)
	}

	all, err := store.ListMerchants(ctx)
	require.NoError(t, err)
	found := false
	for _, merchant := range all {
		if merchant.Code == "zvqx_vendor" {
			found = true
		}
	}
	assert.True(t, found, "inactive stubs still appear in the full listing")
}
