package series

import (
	"testing"
	"time"

	"coinpulse/internal/market"
)

func fixedWindower(now time.Time) *Windower {
	w := NewWindower()
	w.SetClock(func() time.Time { return now })
	return w
}

func TestWindowFiltersTrailingRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := fixedWindower(now)

	points := []market.PricePoint{
		{Timestamp: now.Add(-48 * time.Hour).UnixMilli(), Price: 1},
		{Timestamp: now.Add(-12 * time.Hour).UnixMilli(), Price: 2},
		{Timestamp: now.Add(-30 * time.Second).UnixMilli(), Price: 3},
	}

	out := w.Window(points, market.Timeframe24h, 0)
	if len(out) != 2 {
		t.Fatalf("expected 2 points inside 24h, got %d", len(out))
	}
	if out[0].Price != 2 || out[1].Price != 3 {
		t.Fatalf("wrong points kept: %+v", out)
	}
}

func TestWindowAppendsLivePointWhenStale(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := fixedWindower(now)

	points := []market.PricePoint{
		{Timestamp: now.Add(-2 * time.Hour).UnixMilli(), Price: 0.003},
		{Timestamp: now.Add(-90 * time.Second).UnixMilli(), Price: 0.0035},
	}

	out := w.Window(points, market.Timeframe24h, 0.004)
	last := out[len(out)-1]
	if last.Price != 0.004 || last.Volume != 0 || last.Direction != market.Buy {
		t.Fatalf("live point malformed: %+v", last)
	}
	if diff := now.UnixMilli() - last.Timestamp; diff < 0 || diff > 1000 {
		t.Fatalf("live point should sit at invocation time, off by %dms", diff)
	}
	// Existing points keep their positions.
	if out[0].Price != 0.003 || out[1].Price != 0.0035 {
		t.Fatalf("existing points reordered: %+v", out)
	}
}

func TestWindowAppendsLivePointWhenSparse(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := fixedWindower(now)

	out := w.Window(nil, market.Timeframe7d, 0.01)
	if len(out) != 1 || out[0].Price != 0.01 {
		t.Fatalf("sparse series should still terminate at the live price: %+v", out)
	}
}

func TestWindowFreshSeriesGetsNoLivePoint(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := fixedWindower(now)

	points := []market.PricePoint{
		{Timestamp: now.Add(-5 * time.Minute).UnixMilli(), Price: 1},
		{Timestamp: now.Add(-10 * time.Second).UnixMilli(), Price: 2},
	}
	out := w.Window(points, market.Timeframe24h, 3)
	if len(out) != 2 {
		t.Fatalf("fresh series must not grow a live point: %+v", out)
	}
}

func TestWindowNoLivePriceNoAppend(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w := fixedWindower(now)
	if out := w.Window(nil, market.Timeframe24h, 0); len(out) != 0 {
		t.Fatalf("no live price available, nothing to append: %+v", out)
	}
}
