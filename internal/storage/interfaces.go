package storage

import (
	"context"

	"solana-wallet-tracker/internal/domain"
)

// Snapshot is the full tracker state keyed by subscriber ID.
type Snapshot map[string]*domain.SubscriberConfig

// StateStore persists the full subscriber map.
type StateStore interface {
	// Load returns the persisted snapshot. A store that was never written
	// returns an empty snapshot and no error. Optional fields that were not
	// persisted are left at their zero value; callers fill defaults.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the persisted snapshot atomically.
	Save(ctx context.Context, snap Snapshot) error
}

// TokenMetadataStore caches resolved token metadata across restarts.
type TokenMetadataStore interface {
	// Upsert inserts or replaces metadata for m.Mint.
	Upsert(ctx context.Context, m *domain.TokenMetadata) error

	// GetByMint retrieves metadata by mint address. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// ActivityJournal records delivered notifications.
type ActivityJournal interface {
	// Append adds a record. Records are never updated.
	Append(ctx context.Context, r *domain.ActivityRecord) error

	// ListBySubscriber returns the most recent records for a subscriber,
	// newest first, at most limit entries.
	ListBySubscriber(ctx context.Context, subscriberID string, limit int) ([]domain.ActivityRecord, error)
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, cfg := range s {
		out[id] = cfg.Clone()
	}
	return out
}
