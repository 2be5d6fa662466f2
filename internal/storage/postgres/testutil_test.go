package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationGlob locates the tracker schema relative to this package.
// The migrations package imports this one, so the files are applied by hand.
const migrationGlob = "../migrations/postgres/*.sql"

// setupTestDB starts a throwaway Postgres, applies the tracker schema and
// returns a pool plus a teardown func.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("tracker"),
		postgres.WithUsername("tracker"),
		postgres.WithPassword("tracker"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)

	applySchema(t, ctx, pool)

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	}
}

func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	files, err := filepath.Glob(migrationGlob)
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migrations matched %s", migrationGlob)
	sort.Strings(files)

	for _, f := range files {
		body, err := os.ReadFile(f)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(body))
		require.NoError(t, err, "apply %s", filepath.Base(f))
	}
}

func ptr[T any](v T) *T { return &v }
