package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// TokenMetadataStore implements storage.TokenMetadataStore using PostgreSQL.
type TokenMetadataStore struct {
	pool *Pool
}

// NewTokenMetadataStore creates a new TokenMetadataStore.
func NewTokenMetadataStore(pool *Pool) *TokenMetadataStore {
	return &TokenMetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenMetadataStore = (*TokenMetadataStore)(nil)

// Upsert inserts metadata or replaces the existing row for the same mint.
func (s *TokenMetadataStore) Upsert(ctx context.Context, m *domain.TokenMetadata) error {
	if m == nil || m.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_metadata (mint, symbol, name, logo_url, decimals, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mint) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			logo_url = EXCLUDED.logo_url,
			decimals = EXCLUDED.decimals,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err := s.pool.Exec(ctx, query,
		m.Mint,
		m.Symbol,
		m.Name,
		m.LogoURL,
		m.Decimals,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert token metadata: %w", err)
	}
	return nil
}

// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
func (s *TokenMetadataStore) GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	query := `
		SELECT mint, symbol, name, logo_url, decimals
		FROM token_metadata
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	m, err := scanTokenMetadata(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token metadata by mint: %w", err)
	}
	return m, nil
}

// scanTokenMetadata scans a single row into TokenMetadata.
func scanTokenMetadata(row pgx.Row) (*domain.TokenMetadata, error) {
	var m domain.TokenMetadata

	err := row.Scan(
		&m.Mint,
		&m.Symbol,
		&m.Name,
		&m.LogoURL,
		&m.Decimals,
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
