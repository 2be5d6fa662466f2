package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"

	"solana-wallet-tracker/internal/storage/postgres"
)

const postgresVersionTable = `
	CREATE TABLE IF NOT EXISTS tracker_schema_migrations (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// RunPostgresMigrations applies embedded SQL files in lexical order.
// Applied file names are recorded in tracker_schema_migrations and skipped
// on later runs. Returns the names applied by this call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	if _, err := pool.Exec(ctx, postgresVersionTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	applied, err := appliedPostgresVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, file := range files {
		if applied[file] {
			continue
		}
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return ran, fmt.Errorf("read migration %s: %w", file, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if strings.TrimSpace(string(data)) != "" {
				if _, err := tx.Exec(ctx, string(data)); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO tracker_schema_migrations (version) VALUES ($1)`, file)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("apply migration %s: %w", file, err)
		}
		ran = append(ran, file)
	}

	return ran, nil
}

func appliedPostgresVersions(ctx context.Context, pool *postgres.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM tracker_schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
