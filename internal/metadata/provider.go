// Package metadata resolves token symbol, name and logo for a mint.
package metadata

import (
	"context"

	"solana-wallet-tracker/internal/domain"
)

// Provider looks up metadata for a single mint.
// A miss is reported as (nil, nil); errors are transport or decode failures.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
