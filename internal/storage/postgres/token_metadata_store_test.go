package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

func TestTokenMetadataStore_UpsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	metadata := &domain.TokenMetadata{
		Mint:     "MetadataMint1",
		Symbol:   "TST",
		Name:     "Test Token",
		LogoURL:  "https://example.com/tst.png",
		Decimals: ptr(9),
	}

	require.NoError(t, store.Upsert(ctx, metadata))

	retrieved, err := store.GetByMint(ctx, "MetadataMint1")
	require.NoError(t, err)

	assert.Equal(t, metadata.Mint, retrieved.Mint)
	assert.Equal(t, metadata.Symbol, retrieved.Symbol)
	assert.Equal(t, metadata.Name, retrieved.Name)
	assert.Equal(t, metadata.LogoURL, retrieved.LogoURL)
	require.NotNil(t, retrieved.Decimals)
	assert.Equal(t, 9, *retrieved.Decimals)
}

func TestTokenMetadataStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenMetadataStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.TokenMetadata{Mint: "MintX", Symbol: "OLD"}))
	require.NoError(t, store.Upsert(ctx, &domain.TokenMetadata{Mint: "MintX", Symbol: "NEW", Name: "Renamed"}))

	retrieved, err := store.GetByMint(ctx, "MintX")
	require.NoError(t, err)
	assert.Equal(t, "NEW", retrieved.Symbol)
	assert.Equal(t, "Renamed", retrieved.Name)
	assert.Nil(t, retrieved.Decimals)
}

func TestTokenMetadataStore_GetByMintNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenMetadataStore(pool)

	_, err := store.GetByMint(context.Background(), "NonExistentMint")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
