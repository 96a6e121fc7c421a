package series

import (
	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

// DefaultFallbackRate is used when no hourly reference bucket covers a
// point. Roughly the gas token's USD price; configurable.
const DefaultFallbackRate = 3500.0

// Converter maps native-denominated price points to USD via an hourly
// reference-rate table.
type Converter struct {
	fallback float64
	logger   zerolog.Logger
}

// NewConverter constructs a USD converter. A non-positive fallback rate
// is replaced with the default.
func NewConverter(fallbackRate float64, logger zerolog.Logger) *Converter {
	if fallbackRate <= 0 {
		fallbackRate = DefaultFallbackRate
	}
	return &Converter{
		fallback: fallbackRate,
		logger:   logger.With().Str("component", "usd_converter").Logger(),
	}
}

// Convert returns a new series with every point priced in USD. Series
// already in USD pass through with a copy, never a double conversion.
// Points whose hour has no reference bucket use the fallback rate, so
// output always has the same count and order as input.
func (c *Converter) Convert(s Series, rates map[int64]float64) Series {
	out := Series{
		Points:     make([]market.PricePoint, len(s.Points)),
		Denom:      DenomUSD,
		TradesUsed: s.TradesUsed,
	}
	copy(out.Points, s.Points)

	if s.Denom == DenomUSD {
		return out
	}

	misses := 0
	for i := range out.Points {
		rate, ok := rates[market.BucketHour(out.Points[i].Timestamp)]
		if !ok || rate <= 0 {
			rate = c.fallback
			misses++
		}
		out.Points[i].Price = s.Points[i].Price * rate
	}
	if misses > 0 {
		c.logger.Debug().Int("misses", misses).Int("points", len(out.Points)).Msg("used fallback reference rate")
	}
	return out
}
