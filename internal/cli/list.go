package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solana-wallet-tracker/internal/storage/backend"
	"solana-wallet-tracker/internal/subscription"
)

func newListCommand(opts *options) *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "list <subscriber>",
		Short: "List the wallets a subscriber watches",
		Args:  cobra.ExactArgs(1),
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

			reg := subscription.NewRegistry(store, subscription.Defaults{
				HTTPEndpoint: cfg.Solana.HTTPEndpoint,
				WSEndpoint:   cfg.Solana.WSEndpoint,
			})
			if err := reg.Load(ctx); err != nil {
				return err
			}

			id := args[0]
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if detail {
				entries := reg.ListDetail(id)
				if len(entries) == 0 {
					fmt.Fprintln(w, "no wallets watched")
					return nil
				}
				fmt.Fprintln(w, "NAME\tADDRESS\tADDED\tLAUNCH\tMIN SOL")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\n",
						e.DisplayName, e.Address, e.AddedAt.Format("2006-01-02"), e.LaunchBadge, e.MinNativeSpend)
				}
				return nil
			}

			entries := reg.List(id)
			if len(entries) == 0 {
				fmt.Fprintln(w, "no wallets watched")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\n", e.DisplayName, e.Link)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "show alias, added date and filters")
	return cmd
}
