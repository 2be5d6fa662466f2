package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// StateStore implements storage.StateStore on the tracker_subscribers and
// tracker_watches tables. Save rewrites both tables in one transaction.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// Load reads every subscriber together with its watches.
func (s *StateStore) Load(ctx context.Context) (storage.Snapshot, error) {
	snap := storage.Snapshot{}

	rows, err := s.pool.Query(ctx, `
		SELECT subscriber_id, http_rpc, ws_rpc, silent
		FROM tracker_subscribers
	`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	for rows.Next() {
		var (
			id      string
			httpRPC string
			wsRPC   string
			silent  bool
		)
		if err := rows.Scan(&id, &httpRPC, &wsRPC, &silent); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		cfg := domain.NewSubscriberConfig(httpRPC, wsRPC)
		cfg.Silent = silent
		snap[id] = cfg
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT subscriber_id, address, alias, added_at, launch_only, seen_mints, min_native_spend
		FROM tracker_watches
		ORDER BY subscriber_id, address
	`)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			address string
			w       domain.WatchConfig
		)
		if err := rows.Scan(&id, &address, &w.Alias, &w.AddedAt, &w.LaunchOnly, &w.SeenMints, &w.MinNativeSpend); err != nil {
			return nil, fmt.Errorf("scan watch: %w", err)
		}
		if w.SeenMints == nil {
			w.SeenMints = []string{}
		}
		w.AddedAt = w.AddedAt.UTC()

		cfg, ok := snap[id]
		if !ok {
			cfg = domain.NewSubscriberConfig("", "")
			snap[id] = cfg
		}
		watch := w
		cfg.Watches[address] = &watch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watches: %w", err)
	}

	return snap, nil
}

// Save replaces the stored state with snap.
func (s *StateStore) Save(ctx context.Context, snap storage.Snapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM tracker_watches`); err != nil {
			return fmt.Errorf("clear watches: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tracker_subscribers`); err != nil {
			return fmt.Errorf("clear subscribers: %w", err)
		}

		now := time.Now().UTC()
		batch := &pgx.Batch{}
		for id, cfg := range snap {
			if cfg == nil {
				continue
			}
			batch.Queue(`
				INSERT INTO tracker_subscribers (subscriber_id, http_rpc, ws_rpc, silent, updated_at)
				VALUES ($1, $2, $3, $4, $5)
			`, id, cfg.HTTPEndpoint, cfg.WSEndpoint, cfg.Silent, now)

			for address, w := range cfg.Watches {
				if w == nil {
					continue
				}
				seen := w.SeenMints
				if seen == nil {
					seen = []string{}
				}
				batch.Queue(`
					INSERT INTO tracker_watches (
						subscriber_id, address, alias, added_at, launch_only, seen_mints, min_native_spend
					) VALUES ($1, $2, $3, $4, $5, $6, $7)
				`, id, address, w.Alias, w.AddedAt.UTC(), w.LaunchOnly, seen, w.MinNativeSpend)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert state: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save tracker state: %w", err)
	}
	return nil
}
