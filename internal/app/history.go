package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"coinpulse/internal/cache"
	"coinpulse/internal/market"
)

// HistoryOptions parameterise the one-shot history command.
type HistoryOptions struct {
	Coin      string
	Timeframe string
}

// History fetches and prints a coin's reconstructed price series.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	if !market.ValidAddress(opts.Coin) {
		return fmt.Errorf("invalid coin address %q", opts.Coin)
	}
	tf, err := market.ParseTimeframe(opts.Timeframe)
	if err != nil {
		return err
	}

	svc, _ := a.newService(cache.New(a.Config.Cache.TTL))
	result, err := svc.GetPriceHistory(ctx, opts.Coin, tf, rateDays(tf))
	if err != nil {
		return err
	}

	if len(result.Points) == 0 {
		fmt.Fprintln(os.Stdout, result.Message)
		return nil
	}

	fmt.Fprintf(os.Stdout, "timeframe %s, %d points (%d from trades)\n", tf, len(result.Points), result.TradesUsed)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tPrice (USD)\tVolume\tSide")
	for _, p := range result.Points {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			time.UnixMilli(p.Timestamp).UTC().Format(time.RFC3339),
			market.FormatPriceUSD(p.Price),
			market.FormatAmount(strconv.FormatFloat(p.Volume, 'f', -1, 64)),
			p.Direction,
		)
	}
	return writer.Flush()
}

// Activity fetches and prints a coin's recent trades.
func (a *App) Activity(ctx context.Context, coin string) error {
	if !market.ValidAddress(coin) {
		return fmt.Errorf("invalid coin address %q", coin)
	}

	svc, _ := a.newService(cache.New(a.Config.Cache.TTL))
	result, err := svc.GetRecentActivity(ctx, coin)
	if err != nil {
		return err
	}

	if len(result.Activities) == 0 {
		fmt.Fprintln(os.Stdout, result.Message)
		return nil
	}

	fmt.Fprintf(os.Stdout, "%d trades (source: %s)\n", len(result.Activities), result.Source)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSide\tAmount\tSender\tTx")
	for _, t := range result.Activities {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			time.UnixMilli(t.BlockTime).UTC().Format(time.RFC3339),
			t.Direction,
			market.FormatAmount(t.CoinAmount),
			t.Sender,
			t.TxHash,
		)
	}
	return writer.Flush()
}

func rateDays(tf market.Timeframe) int {
	days := int(tf.Duration() / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}
