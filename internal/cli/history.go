package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"coinpulse/internal/app"
)

var historyTimeframe string

var historyCmd = &cobra.Command{
	Use:   "history <coin-address>",
	Short: "Print a coin's reconstructed price series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "" {
			return errors.New("coin address is required")
		}
		return getApp().History(cmd.Context(), app.HistoryOptions{
			Coin:      args[0],
			Timeframe: historyTimeframe,
		})
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyTimeframe, "timeframe", "24h", "Chart timeframe (24h, 7d, 30d, 1y)")
}
