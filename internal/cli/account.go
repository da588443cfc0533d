package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"hooktrader/internal/app"
	"hooktrader/internal/pkg/symbol"

	"github.com/spf13/cobra"
)

func newAccountCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Print available balance and current position",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			client, err := app.NewExchangeClient(cfg.Exchange, cfg.Trading)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			sym := symbol.Normalize(cfg.Trading.Symbol)
			snap, err := client.AccountSnapshot(ctx, sym)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "mode\t%s\n", cfg.Exchange.Mode)
			fmt.Fprintf(w, "symbol\t%s\n", sym)
			fmt.Fprintf(w, "available\t%s %s\n", snap.AvailableBalance.String(), snap.Asset)
			fmt.Fprintf(w, "wallet\t%s %s\n", snap.TotalWalletBalance.String(), snap.Asset)
			pos := snap.Position
			if pos.IsFlat() {
				fmt.Fprintf(w, "position\tNONE\n")
			} else {
				fmt.Fprintf(w, "position\t%s %s @ %s (mark %s, upnl %s, %dx)\n",
					pos.Side, pos.Quantity.String(), pos.EntryPrice.String(), pos.MarkPrice.String(), pos.UnrealizedPnL.String(), pos.Leverage)
			}
			return w.Flush()
		},
	}
}
