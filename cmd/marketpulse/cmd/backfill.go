package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marketpulse/internal/app"
	"github.com/wonny/marketpulse/internal/service/pricesync"
)

var backfillDays int

// backfillCmd 가격 이력 적재
var backfillCmd = &cobra.Command{
	Use:   "backfill [tickers...]",
	Short: "Fetch recent daily closes into the price history store",
	Long: `Fetch recent daily closes from the market feed and upsert them into stock_prices.
Without tickers, every ticker of the current scored events is synced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withApp(cmd.Context(), func(a *app.App) error {
			res, err := a.Prices.Backfill(cmd.Context(), args, backfillDays)
			if err != nil {
				return err
			}

			for _, t := range res.Tickers {
				if t.Error != "" {
					fmt.Fprintf(out, "  ⚠️ %s: %s\n", t.Ticker, t.Error)
					continue
				}
				fmt.Fprintf(out, "  ✅ %s: %d/%d closes saved\n", t.Ticker, t.Saved, t.Fetched)
			}
			fmt.Fprintf(out, "\n✅ Saved %d closes, %d tickers failed\n", res.Saved, res.Failed)
			return nil
		})
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillDays, "days", pricesync.DefaultDays, "trailing trading sessions to fetch")
}
