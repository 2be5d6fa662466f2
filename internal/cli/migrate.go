package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"solana-wallet-tracker/internal/storage/migrations"
	pgstore "solana-wallet-tracker/internal/storage/postgres"
)

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded Postgres and ClickHouse migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if cfg.Store.PostgresDSN == "" && cfg.Store.ClickhouseDSN == "" {
				return fmt.Errorf("set POSTGRES_DSN and/or CLICKHOUSE_DSN")
			}

			if cfg.Store.PostgresDSN != "" {
				pool, err := pgstore.NewPool(ctx, cfg.Store.PostgresDSN)
				if err != nil {
					return fmt.Errorf("connect to postgres: %w", err)
				}
				applied, err := migrations.RunPostgresMigrations(ctx, pool)
				pool.Close()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "postgres: %d migrations applied %v\n", len(applied), applied)
			}

			if cfg.Store.ClickhouseDSN != "" {
				conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Store.ClickhouseDSN)
				if err != nil {
					return err
				}
				_ = conn.Close()
				fmt.Fprintln(out, "clickhouse: schema up to date")
			}
			return nil
		},
	}
}
