// Package cli implements trackerctl, the offline administration tool for
// persisted tracker state.
package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"solana-wallet-tracker/internal/config"
)

type options struct {
	backend string
	path    string
	debug   bool
}

// NewRootCommand builds the trackerctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Administer wallet tracker state",
		Long:          `trackerctl exports, imports and inspects the persisted subscriber state of the wallet tracker and applies storage migrations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			stylelog.InitDefault(&tint.Options{
				Level:      level,
				TimeFormat: time.RFC3339,
			})
		},
	}

	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "state backend (default from TRACKER_STORE_BACKEND)")
	root.PersistentFlags().StringVar(&opts.path, "store", "", "state file path (default from TRACKER_STORE)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newExportCommand(opts),
		newImportCommand(opts),
		newMigrateCommand(opts),
		newListCommand(opts),
	)
	return root
}

// Execute runs trackerctl and exits non-zero on failure.
func Execute() {
	_ = godotenv.Load()
	if err := NewRootCommand().Execute(); err != nil {
		slog.Error("trackerctl failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if opts.backend != "" {
		cfg.Store.Backend = opts.backend
	}
	if opts.path != "" {
		cfg.Store.Path = opts.path
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
