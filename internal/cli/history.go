package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"hooktrader/internal/app"
	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/spf13/cobra"
)

type historyOptions struct {
	limit  int
	side   string
	symbol string
	asJSON bool
}

func newHistoryCmd(opts *RootOptions) *cobra.Command {
	ho := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded trades (oldest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer st.Close()
			records, err := st.List(cmd.Context(), store.Filter{Side: ho.side, Symbol: ho.symbol, Limit: ho.limit}.Normalize())
			if err != nil {
				return err
			}
			if ho.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if records == nil {
					records = []model.TradeRecord{}
				}
				return enc.Encode(records)
			}
			return printHistory(cmd, records)
		},
	}
	cmd.Flags().IntVarP(&ho.limit, "limit", "n", 20, "most recent N records (0 = all)")
	cmd.Flags().StringVar(&ho.side, "side", "", "filter by LONG or SHORT")
	cmd.Flags().StringVar(&ho.symbol, "symbol", "", "filter by symbol")
	cmd.Flags().BoolVar(&ho.asJSON, "json", false, "print JSON")
	return cmd
}

func printHistory(cmd *cobra.Command, records []model.TradeRecord) error {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no trades recorded")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tSIDE\tSTATUS\tQTY\tENTRY\tSTOP\tORDER")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Symbol, rec.Side, rec.Status,
			rec.Quantity.String(), rec.Entry.String(), rec.Stop.String(), rec.OrderID)
	}
	return w.Flush()
}
