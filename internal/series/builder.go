package series

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

// Denomination records which currency a series' prices are expressed in.
type Denomination string

const (
	// DenomNative marks prices in the network gas token, pending USD
	// conversion.
	DenomNative Denomination = "native"
	// DenomUSD marks prices already in USD; conversion is a pass-through.
	DenomUSD Denomination = "usd"
)

// Series is a chronologically ordered run of price points plus the
// metadata the conversion stage needs.
type Series struct {
	Points []market.PricePoint
	Denom  Denomination
	// TradesUsed counts the swap records that contributed points.
	TradesUsed int
}

// ErrNilSnapshot is a programmer error: synthetic mode was requested
// without the snapshot it interpolates from.
var ErrNilSnapshot = errors.New("series: synthetic build requires a snapshot")

// BuilderOptions expose the reconstruction constants. The drift and
// clamp values have no documented derivation upstream, so they stay
// configurable rather than hard-coded.
type BuilderOptions struct {
	// BuyDrift multiplies the running base price after each buy.
	BuyDrift float64
	// SellDrift multiplies the running base price after each sell.
	SellDrift float64
	// ClampBand bounds derived prices to anchor*(1±ClampBand).
	ClampBand float64
	// TradeJitter is the half-width of per-point random variation in
	// trade-anchored mode.
	TradeJitter float64
	// SyntheticJitter is the half-width of per-point random variation in
	// synthetic mode.
	SyntheticJitter float64
	// SyntheticFloor is the minimum synthetic price as a fraction of the
	// current price.
	SyntheticFloor float64
}

// DefaultBuilderOptions mirror the observed reconstruction behaviour.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		BuyDrift:        1.0001,
		SellDrift:       0.9999,
		ClampBand:       0.25,
		TradeJitter:     0.025,
		SyntheticJitter: 0.02,
		SyntheticFloor:  0.5,
	}
}

// Builder reconstructs a price series from swap records, or synthesizes
// one from a market snapshot when no trade history is available. The
// random source is injected so invariants can be tested deterministically.
type Builder struct {
	opts   BuilderOptions
	rng    *rand.Rand
	now    func() time.Time
	logger zerolog.Logger
}

// NewBuilder constructs a series builder. A nil rng falls back to a
// time-seeded source.
func NewBuilder(opts BuilderOptions, rng *rand.Rand, logger zerolog.Logger) *Builder {
	if opts.BuyDrift <= 0 || opts.SellDrift <= 0 {
		def := DefaultBuilderOptions()
		opts.BuyDrift, opts.SellDrift = def.BuyDrift, def.SellDrift
	}
	if opts.ClampBand <= 0 {
		opts.ClampBand = DefaultBuilderOptions().ClampBand
	}
	if opts.SyntheticFloor <= 0 {
		opts.SyntheticFloor = DefaultBuilderOptions().SyntheticFloor
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{
		opts:   opts,
		rng:    rng,
		now:    time.Now,
		logger: logger.With().Str("component", "series_builder").Logger(),
	}
}

// SetClock overrides the builder's time source. Tests only.
func (b *Builder) SetClock(now func() time.Time) { b.now = now }

// Build reconstructs a series from swap records anchored on the
// snapshot's current price. An empty swap list yields an empty series;
// the caller then falls back to BuildSynthetic. A non-positive anchor
// price also yields an empty series so the UI can show its no-data
// state instead of a zero-price chart.
//
// The upstream ledger exposes no per-trade executed price, so points
// are derived from a drift model: each buy nudges a running base price
// up, each sell down, and every point is clamped to a band around the
// anchor. The result is plausible, chronologically coherent motion
// rather than historical truth.
func (b *Builder) Build(swaps []market.SwapRecord, snapshot *market.MarketSnapshot) Series {
	if len(swaps) == 0 {
		return Series{Denom: DenomUSD}
	}

	anchor := 0.0
	if snapshot != nil {
		anchor = snapshot.PriceUSD
	}
	if anchor <= 0 {
		b.logger.Debug().Msg("no positive anchor price; returning empty series")
		return Series{Denom: DenomUSD}
	}

	ordered := make([]market.SwapRecord, 0, len(swaps))
	for _, s := range swaps {
		if s.BlockTime <= 0 {
			continue
		}
		ordered = append(ordered, s)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BlockTime < ordered[j].BlockTime
	})

	lo := anchor * (1 - b.opts.ClampBand)
	hi := anchor * (1 + b.opts.ClampBand)

	points := make([]market.PricePoint, 0, len(ordered))
	base := anchor
	for _, swap := range ordered {
		jitter := (b.rng.Float64() - 0.5) * 2 * b.opts.TradeJitter
		price := clamp(base*(1+jitter), lo, hi)

		volume := 0.0
		if amt, err := market.ParseAmount(swap.CoinAmount); err == nil {
			volume = amt.InexactFloat64()
		}

		points = append(points, market.PricePoint{
			Timestamp: swap.BlockTime,
			Price:     price,
			Volume:    volume,
			Direction: swap.Direction,
		})

		switch swap.Direction {
		case market.Buy:
			base *= b.opts.BuyDrift
		case market.Sell:
			base *= b.opts.SellDrift
		}
		base = clamp(base, lo, hi)
	}

	return Series{Points: points, Denom: DenomUSD, TradesUsed: len(points)}
}

// BuildSynthetic interpolates a series from snapshot data alone: the
// price 24h ago is implied by the 24h change, and evenly spaced points
// walk linearly from there to the current price with bounded jitter.
// The final point is always exactly the current price at "now".
func (b *Builder) BuildSynthetic(snapshot *market.MarketSnapshot, tf market.Timeframe) (Series, error) {
	if snapshot == nil {
		return Series{}, ErrNilSnapshot
	}

	current := snapshot.PriceUSD
	if current <= 0 {
		return Series{Denom: DenomUSD}, nil
	}

	// A reported 24h change of -100% (or worse) leaves no finite implied
	// base price; short-circuit to the no-data series instead of letting
	// Inf/NaN reach the chart.
	factor := 1 + snapshot.PriceChange24h/100
	if factor <= 0 || math.IsNaN(factor) {
		b.logger.Debug().Float64("change24h", snapshot.PriceChange24h).Msg("unusable 24h change; returning empty series")
		return Series{Denom: DenomUSD}, nil
	}

	priceAgo := current / factor
	count, step := tf.SyntheticShape()
	now := b.now().UnixMilli()
	stepMs := step.Milliseconds()
	floor := current * b.opts.SyntheticFloor

	points := make([]market.PricePoint, 0, count+1)
	for i := 0; i < count; i++ {
		progress := 0.0
		if count > 1 {
			progress = float64(i) / float64(count-1)
		}
		base := priceAgo + (current-priceAgo)*progress
		jitter := (b.rng.Float64() - 0.5) * 2 * b.opts.SyntheticJitter
		price := base * (1 + jitter)
		if price < floor {
			price = floor
		}

		dir := market.Sell
		if b.rng.Float64() > 0.5 {
			dir = market.Buy
		}

		points = append(points, market.PricePoint{
			Timestamp: now - int64(count-i)*stepMs,
			Price:     price,
			Volume:    b.rng.Float64() * 1_000_000,
			Direction: dir,
		})
	}

	points = append(points, market.PricePoint{
		Timestamp: now,
		Price:     current,
		Volume:    0,
		Direction: market.Buy,
	})

	return Series{Points: points, Denom: DenomUSD}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
