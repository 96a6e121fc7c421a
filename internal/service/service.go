package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/cache"
	"coinpulse/internal/feeds"
	"coinpulse/internal/market"
	"coinpulse/internal/series"
)

// Messages attached to legitimately empty results.
const (
	MsgNoPairs = "No trading pairs found"
	MsgNoData  = "No trading data available"
)

// ErrAllSourcesFailed surfaces only when every source in a fallback
// chain failed; partial upstream failure degrades silently.
var ErrAllSourcesFailed = errors.New("service: all upstream sources failed")

// HistoryResult is the core-facing price history response.
type HistoryResult struct {
	Points     []market.PricePoint `json:"priceHistory"`
	TradesUsed int                 `json:"totalTradesUsed"`
	Timeframe  market.Timeframe    `json:"timeframe"`
	// CurrentPrice is the snapshot price, zero when unknown.
	CurrentPrice float64 `json:"currentPrice,omitempty"`
	GeneratedAt  int64   `json:"generatedAt"`
	Message      string  `json:"message,omitempty"`
}

// ActivityResult is the core-facing recent activity response.
type ActivityResult struct {
	Activities  []market.ActivityRecord `json:"activities"`
	Source      market.ActivitySource   `json:"source"`
	GeneratedAt int64                   `json:"generatedAt"`
	Message     string                  `json:"message,omitempty"`
}

// Options wire the pipeline's collaborators and knobs.
type Options struct {
	Swaps     feeds.SwapSource
	Snapshots feeds.SnapshotSource
	Rates     feeds.RateSource
	Builder   *series.Builder
	Converter *series.Converter
	Windower  *series.Windower
	Activity  *series.ActivityBook
	Cache     *cache.Cache
	// SwapPageSize is how many swap records one reconstruction uses.
	SwapPageSize int
	// FetchTimeout bounds each upstream call; timeouts degrade to the
	// next source instead of failing the request.
	FetchTimeout time.Duration
}

// Service runs the price-history reconstruction and activity pipeline.
type Service struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs the pipeline service.
func New(opts Options, logger zerolog.Logger) *Service {
	if opts.SwapPageSize <= 0 {
		opts.SwapPageSize = 100
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Service{
		opts:   opts,
		logger: logger.With().Str("component", "service").Logger(),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// GetPriceHistory reconstructs a coin's price series for a timeframe.
// Sources degrade in order: trade-anchored reconstruction from swap
// records, synthetic interpolation from the market snapshot, empty. An
// error is returned only when every source failed outright.
func (s *Service) GetPriceHistory(ctx context.Context, coin string, tf market.Timeframe, days int) (HistoryResult, error) {
	coin = market.NormalizeAddress(coin)
	key := cache.Key(coin, "history", string(tf))
	if s.opts.Cache != nil {
		if v, ok := s.opts.Cache.Get(key); ok {
			return v.(HistoryResult), nil
		}
	}

	snapshot, snapAnswered, snapErr := s.fetchSnapshot(ctx, coin)
	swaps, swapErr := s.fetchSwaps(ctx, coin)
	if snapErr != nil && swapErr != nil {
		return HistoryResult{}, fmt.Errorf("%w: snapshot: %v; swaps: %v", ErrAllSourcesFailed, snapErr, swapErr)
	}

	result := HistoryResult{
		Timeframe:   tf,
		GeneratedAt: s.now().UnixMilli(),
	}
	if snapshot != nil {
		result.CurrentPrice = snapshot.PriceUSD
	}

	built := s.opts.Builder.Build(swaps, snapshot)
	if len(built.Points) == 0 && snapshot != nil {
		synthetic, err := s.opts.Builder.BuildSynthetic(snapshot, tf)
		if err != nil {
			return HistoryResult{}, err
		}
		built = synthetic
	}

	// The reference-rate feed is fetched per request window; a failure
	// there degrades to the fallback constant and never aborts the
	// pipeline.
	rates := s.fetchRates(ctx, days)
	converted := s.opts.Converter.Convert(built, rates)

	livePrice := 0.0
	if snapshot != nil {
		livePrice = snapshot.PriceUSD
	}
	result.Points = s.opts.Windower.Window(converted.Points, tf, livePrice)
	result.TradesUsed = converted.TradesUsed

	if len(result.Points) == 0 {
		// "No trading pairs" is a claim about the market, so it needs a
		// source that actually answered; timeouts and failures only
		// support the weaker "no data".
		if snapshot == nil && snapAnswered {
			result.Message = MsgNoPairs
		} else {
			result.Message = MsgNoData
		}
	}

	if s.opts.Cache != nil {
		s.opts.Cache.Set(key, result)
	}
	return result, nil
}

// GetRecentActivity returns the most recent trades for a coin,
// preferring the aggregator interpolation, then raw swap records, then
// an explicit empty state.
func (s *Service) GetRecentActivity(ctx context.Context, coin string) (ActivityResult, error) {
	coin = market.NormalizeAddress(coin)
	key := cache.Key(coin, "activity", "-")
	if s.opts.Cache != nil {
		if v, ok := s.opts.Cache.Get(key); ok {
			return v.(ActivityResult), nil
		}
	}

	result := ActivityResult{
		Source:      market.SourceNone,
		GeneratedAt: s.now().UnixMilli(),
	}

	snapshot, _, snapErr := s.fetchSnapshot(ctx, coin)
	if records := s.opts.Activity.FromSnapshot(snapshot); len(records) > 0 {
		result.Activities = records
		result.Source = market.SourceAggregator
	} else {
		swaps, swapErr := s.fetchSwaps(ctx, coin)
		if snapErr != nil && swapErr != nil {
			return ActivityResult{}, fmt.Errorf("%w: snapshot: %v; swaps: %v", ErrAllSourcesFailed, snapErr, swapErr)
		}
		if records := s.opts.Activity.FromSwaps(swaps); len(records) > 0 {
			result.Activities = records
			result.Source = market.SourceRaw
		}
	}

	if result.Source == market.SourceNone {
		result.Activities = []market.ActivityRecord{}
		result.Message = MsgNoData
	}

	if s.opts.Cache != nil {
		s.opts.Cache.Set(key, result)
	}
	return result, nil
}

// Snapshot exposes the snapshot feed to callers that only need the
// current market state, such as the background refresher.
func (s *Service) Snapshot(ctx context.Context, coin string) (*market.MarketSnapshot, error) {
	snapshot, _, err := s.fetchSnapshot(ctx, market.NormalizeAddress(coin))
	return snapshot, err
}

// fetchSnapshot reports, besides the snapshot itself, whether the
// upstream actually answered. A nil snapshot with answered=true means
// the source confirmed there is no pair; answered=false means we simply
// do not know.
func (s *Service) fetchSnapshot(ctx context.Context, coin string) (snapshot *market.MarketSnapshot, answered bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	snapshot, err = s.opts.Snapshots.FetchSnapshot(ctx, coin)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Timeout counts as upstream-empty: the fallback chain
			// continues and nothing is fatal yet.
			s.logger.Warn().Str("coin", coin).Msg("snapshot fetch timed out")
			return nil, false, nil
		}
		s.logger.Warn().Err(err).Str("coin", coin).Msg("snapshot fetch failed")
		return nil, false, err
	}
	return snapshot, true, nil
}

func (s *Service) fetchSwaps(ctx context.Context, coin string) ([]market.SwapRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	page, err := s.opts.Swaps.FetchSwaps(ctx, coin, s.opts.SwapPageSize, "")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().Str("coin", coin).Msg("swap fetch timed out")
			return nil, nil
		}
		s.logger.Warn().Err(err).Str("coin", coin).Msg("swap fetch failed")
		return nil, err
	}
	return page.Records, nil
}

func (s *Service) fetchRates(ctx context.Context, days int) map[int64]float64 {
	if s.opts.Rates == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	rates, err := s.opts.Rates.FetchRateSeries(ctx, days)
	if err != nil {
		s.logger.Warn().Err(err).Int("days", days).Msg("reference rate fetch failed, using fallback")
		return nil
	}
	return rates
}
