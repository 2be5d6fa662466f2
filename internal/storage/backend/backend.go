// Package backend opens the configured storage implementations.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"solana-wallet-tracker/internal/config"
	"solana-wallet-tracker/internal/storage"
	chstore "solana-wallet-tracker/internal/storage/clickhouse"
	"solana-wallet-tracker/internal/storage/file"
	"solana-wallet-tracker/internal/storage/memory"
	"solana-wallet-tracker/internal/storage/migrations"
	pgstore "solana-wallet-tracker/internal/storage/postgres"
	redisstore "solana-wallet-tracker/internal/storage/redis"
)

// Stores holds the opened storage implementations.
type Stores struct {
	State    storage.StateStore
	Metadata storage.TokenMetadataStore
	Journal  storage.ActivityJournal

	closers []func()
}

// Close releases every connection Open created.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open connects the state backend, the token metadata cache and the
// activity journal. Postgres and ClickHouse schemas are migrated on open.
// Metadata is persisted in Postgres whenever a DSN is configured; the
// journal uses ClickHouse when a DSN is configured. Everything else falls
// back to memory.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{}

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		p, err := openPostgres(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		pool = p
		s.closers = append(s.closers, pool.Close)
	}

	state, closeState, err := openState(ctx, cfg, pool)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.State = state
	s.closers = append(s.closers, closeState)

	if pool != nil {
		s.Metadata = pgstore.NewTokenMetadataStore(pool)
	} else {
		s.Metadata = memory.NewTokenMetadataStore()
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Journal = chstore.NewActivityJournal(conn)
	} else {
		s.Journal = memory.NewActivityJournal(0)
	}

	logger.Info("storage opened",
		"state", cfg.Backend,
		"metadata_persisted", pool != nil,
		"journal_clickhouse", cfg.ClickhouseDSN != "",
	)
	return s, nil
}

// OpenState opens only the state backend.
func OpenState(ctx context.Context, cfg config.StoreConfig) (storage.StateStore, func(), error) {
	var pool *pgstore.Pool
	if cfg.Backend == config.BackendPostgres {
		p, err := openPostgres(ctx, cfg.PostgresDSN, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		pool = p
	}
	state, closeState, err := openState(ctx, cfg, pool)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, err
	}
	return state, func() {
		closeState()
		if pool != nil {
			pool.Close()
		}
	}, nil
}

func openState(ctx context.Context, cfg config.StoreConfig, pool *pgstore.Pool) (storage.StateStore, func(), error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return file.NewStateStore(cfg.Path), func() {}, nil
	case config.BackendMemory:
		return memory.NewStateStore(), func() {}, nil
	case config.BackendPostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("postgres backend requires POSTGRES_DSN")
		}
		return pgstore.NewStateStore(pool), func() {}, nil
	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Config{URL: cfg.RedisURL, Password: cfg.RedisPassword})
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStateStore(client, cfg.RedisKey), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

func openPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*pgstore.Pool, error) {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("postgres migrations applied", "files", applied)
	}
	return pool, nil
}
