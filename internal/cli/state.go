package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"solana-wallet-tracker/internal/storage"
	"solana-wallet-tracker/internal/storage/backend"
)

func newExportCommand(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the persisted state as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeFn, err := backend.OpenState(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := store.Load(ctx)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}
			data, err := storage.EncodeDocument(snap)
			if err != nil {
				return err
			}
			if out != "" {
				return os.WriteFile(out, append(data, '\n'), 0o644)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the persisted state with a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			snap, err := storage.DecodeDocument(data)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeFn, err := backend.OpenState(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.Save(ctx, snap); err != nil {
				return fmt.Errorf("save state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d subscribers into %s\n", len(snap), cfg.Store.Backend)
			return nil
		},
	}
}
