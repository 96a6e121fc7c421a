package series

import (
	"time"

	"coinpulse/internal/market"
)

// staleAfter is how old the newest point may be before a live point is
// appended so charts still terminate at "now".
const staleAfter = 60 * time.Second

// Windower restricts a series to a trailing timeframe and guarantees a
// terminal live point when the data is stale.
type Windower struct {
	now func() time.Time
}

// NewWindower constructs a timeframe filter.
func NewWindower() *Windower {
	return &Windower{now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (w *Windower) SetClock(now func() time.Time) { w.now = now }

// Window filters points to the trailing timeframe, preserving order,
// and appends a synthetic point at the live price when the filtered
// series is too small or too stale to reach "now". livePrice <= 0 means
// no live price is available and nothing is appended.
func (w *Windower) Window(points []market.PricePoint, tf market.Timeframe, livePrice float64) []market.PricePoint {
	now := w.now()
	cutoff := now.Add(-tf.Duration()).UnixMilli()

	out := make([]market.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp >= cutoff {
			out = append(out, p)
		}
	}

	if livePrice <= 0 {
		return out
	}

	needsLive := len(out) < 2
	if !needsLive {
		last := out[len(out)-1]
		needsLive = now.UnixMilli()-last.Timestamp > staleAfter.Milliseconds()
	}
	if needsLive {
		out = append(out, market.PricePoint{
			Timestamp: now.UnixMilli(),
			Price:     livePrice,
			Volume:    0,
			Direction: market.Buy,
		})
	}
	return out
}
