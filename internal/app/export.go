package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"coinpulse/internal/cache"
	"coinpulse/internal/market"
)

// ExportOptions parameterise the export command.
type ExportOptions struct {
	Coin      string
	Timeframe string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// Export fetches a coin's price series and renders it as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if !market.ValidAddress(opts.Coin) {
		return fmt.Errorf("invalid coin address %q", opts.Coin)
	}
	tf, err := market.ParseTimeframe(opts.Timeframe)
	if err != nil {
		return err
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	svc, _ := a.newService(cache.New(a.Config.Cache.TTL))
	result, err := svc.GetPriceHistory(ctx, opts.Coin, tf, rateDays(tf))
	if err != nil {
		return err
	}
	if len(result.Points) == 0 {
		a.Logger.Info().Str("coin", opts.Coin).Msg("no points to export")
		return nil
	}

	points := downsamplePoints(result.Points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(result.Points)).Int("exported", len(points)).Msg("exporting price series")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, points); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writePointsPNG(opts.PNGPath, opts.Coin, tf, points); err != nil {
			return err
		}
	}
	return nil
}

func downsamplePoints(points []market.PricePoint, max int) []market.PricePoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]market.PricePoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path string, points []market.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "price_usd", "volume", "side"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			time.UnixMilli(p.Timestamp).UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Price, 'f', -1, 64),
			strconv.FormatFloat(p.Volume, 'f', -1, 64),
			string(p.Direction),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePointsPNG(path, coin string, tf market.Timeframe, points []market.PricePoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	price := make([]float64, len(points))
	volume := make([]float64, len(points))
	for i, p := range points {
		x[i] = time.UnixMilli(p.Timestamp).UTC()
		price[i] = p.Price
		volume[i] = p.Volume
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.6f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s)", coin, tf),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (USD)",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Volume",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "Volume",
				XValues: x,
				YValues: volume,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
