package service

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/cache"
	"coinpulse/internal/feeds"
	"coinpulse/internal/market"
	"coinpulse/internal/series"
)

const testCoin = "0x1234567890abcdef1234567890abcdef12345678"

func noopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type stubSwaps struct {
	page  feeds.SwapPage
	err   error
	calls int
}

func (s *stubSwaps) FetchSwaps(ctx context.Context, coin string, count int, cursor string) (feeds.SwapPage, error) {
	s.calls++
	return s.page, s.err
}

type stubSnapshots struct {
	snapshot *market.MarketSnapshot
	err      error
	calls    int
}

func (s *stubSnapshots) FetchSnapshot(ctx context.Context, coin string) (*market.MarketSnapshot, error) {
	s.calls++
	return s.snapshot, s.err
}

type stubRates struct {
	rates map[int64]float64
	err   error
}

func (s *stubRates) FetchRateSeries(ctx context.Context, days int) (map[int64]float64, error) {
	return s.rates, s.err
}

func newTestService(t *testing.T, swaps feeds.SwapSource, snapshots feeds.SnapshotSource, rates feeds.RateSource) (*Service, time.Time) {
	t.Helper()
	now := time.UnixMilli(1_700_000_000_000)
	clock := func() time.Time { return now }

	rng := rand.New(rand.NewSource(7))
	builder := series.NewBuilder(series.DefaultBuilderOptions(), rng, noopLogger())
	builder.SetClock(clock)
	windower := series.NewWindower()
	windower.SetClock(clock)
	book := series.NewActivityBook(rand.New(rand.NewSource(7)), noopLogger())
	book.SetClock(clock)

	c := cache.New(cache.DefaultTTL)
	c.SetClock(clock)

	svc := New(Options{
		Swaps:     swaps,
		Snapshots: snapshots,
		Rates:     rates,
		Builder:   builder,
		Converter: series.NewConverter(series.DefaultFallbackRate, noopLogger()),
		Windower:  windower,
		Activity:  book,
		Cache:     c,
	}, noopLogger())
	svc.SetClock(clock)
	return svc, now
}

func snapshotFixture() *market.MarketSnapshot {
	return &market.MarketSnapshot{
		PriceUSD:       0.004,
		PriceChange24h: 12.5,
		Volume24hUSD:   48_000,
		LiquidityUSD:   100_000,
		PairAddress:    "0xabcdef1234567890abcdef1234567890abcdef12",
	}
}

func swapsFixture(now time.Time, n int) []market.SwapRecord {
	records := make([]market.SwapRecord, 0, n)
	for i := 0; i < n; i++ {
		dir := market.Buy
		if i%3 == 0 {
			dir = market.Sell
		}
		records = append(records, market.SwapRecord{
			Direction:  dir,
			CoinAmount: "1000",
			Sender:     testCoin,
			BlockTime:  now.Add(-time.Duration(n-i) * time.Minute).UnixMilli(),
			TxHash:     "0xfeed",
		})
	}
	return records
}

func TestGetPriceHistoryTradeAnchored(t *testing.T) {
	swaps := &stubSwaps{}
	snapshots := &stubSnapshots{snapshot: snapshotFixture()}
	svc, now := newTestService(t, swaps, snapshots, &stubRates{})
	swaps.page = feeds.SwapPage{Records: swapsFixture(now, 30)}

	result, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("GetPriceHistory: %v", err)
	}
	if result.TradesUsed != 30 {
		t.Fatalf("TradesUsed = %d, want 30", result.TradesUsed)
	}
	if len(result.Points) < 30 {
		t.Fatalf("len(Points) = %d, want >= 30", len(result.Points))
	}
	if result.Message != "" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	anchor := snapshots.snapshot.PriceUSD
	for i, p := range result.Points {
		if p.Price < anchor*0.75-1e-12 || p.Price > anchor*1.25+1e-12 {
			t.Fatalf("point %d price %v outside clamp band around %v", i, p.Price, anchor)
		}
	}
}

func TestGetPriceHistorySyntheticFallback(t *testing.T) {
	swaps := &stubSwaps{page: feeds.SwapPage{}}
	snapshots := &stubSnapshots{snapshot: snapshotFixture()}
	svc, _ := newTestService(t, swaps, snapshots, &stubRates{})

	result, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("GetPriceHistory: %v", err)
	}
	if result.TradesUsed != 0 {
		t.Fatalf("TradesUsed = %d, want 0 in synthetic mode", result.TradesUsed)
	}
	// 24 interpolated points plus the exact terminal live point.
	if len(result.Points) != 25 {
		t.Fatalf("len(Points) = %d, want 25", len(result.Points))
	}
	last := result.Points[len(result.Points)-1]
	if last.Price != snapshots.snapshot.PriceUSD {
		t.Fatalf("terminal price = %v, want current price %v", last.Price, snapshots.snapshot.PriceUSD)
	}
}

func TestGetPriceHistoryNoPairs(t *testing.T) {
	// No trading pair exists: snapshot is nil with no error and there
	// are no swaps. The result is empty but successful.
	svc, _ := newTestService(t, &stubSwaps{}, &stubSnapshots{}, &stubRates{})

	result, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("GetPriceHistory: %v", err)
	}
	if len(result.Points) != 0 {
		t.Fatalf("len(Points) = %d, want 0", len(result.Points))
	}
	if result.Message != MsgNoPairs {
		t.Fatalf("Message = %q, want %q", result.Message, MsgNoPairs)
	}
}

func TestGetPriceHistorySnapshotTimeoutIsNotNoPairs(t *testing.T) {
	// A snapshot timeout says nothing about whether a pair exists, so
	// the empty result must not claim "no trading pairs".
	snapshots := &stubSnapshots{err: context.DeadlineExceeded}
	svc, _ := newTestService(t, &stubSwaps{}, snapshots, &stubRates{})

	result, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("GetPriceHistory: %v", err)
	}
	if len(result.Points) != 0 {
		t.Fatalf("len(Points) = %d, want 0", len(result.Points))
	}
	if result.Message != MsgNoData {
		t.Fatalf("Message = %q, want %q", result.Message, MsgNoData)
	}
}

func TestGetPriceHistoryAllSourcesFailed(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := newTestService(t, &stubSwaps{err: boom}, &stubSnapshots{err: boom}, &stubRates{})

	_, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("err = %v, want ErrAllSourcesFailed", err)
	}
}

func TestGetPriceHistoryPartialFailureDegrades(t *testing.T) {
	// The swap feed is down but the snapshot survives: synthetic mode
	// should carry the request.
	swaps := &stubSwaps{err: errors.New("indexer down")}
	snapshots := &stubSnapshots{snapshot: snapshotFixture()}
	svc, _ := newTestService(t, swaps, snapshots, &stubRates{})

	result, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("GetPriceHistory: %v", err)
	}
	if len(result.Points) == 0 {
		t.Fatal("expected synthetic points despite swap feed failure")
	}
}

func TestGetPriceHistoryCaches(t *testing.T) {
	swaps := &stubSwaps{}
	snapshots := &stubSnapshots{snapshot: snapshotFixture()}
	svc, now := newTestService(t, swaps, snapshots, &stubRates{})
	swaps.page = feeds.SwapPage{Records: swapsFixture(now, 5)}

	first, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.GetPriceHistory(context.Background(), testCoin, market.Timeframe24h, 7)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if snapshots.calls != 1 || swaps.calls != 1 {
		t.Fatalf("upstream calls = %d/%d, want 1/1", snapshots.calls, swaps.calls)
	}
	if len(first.Points) != len(second.Points) {
		t.Fatalf("cached result diverged: %d vs %d points", len(first.Points), len(second.Points))
	}
}

func TestGetRecentActivityAggregator(t *testing.T) {
	svc, _ := newTestService(t, &stubSwaps{}, &stubSnapshots{snapshot: snapshotFixture()}, &stubRates{})

	result, err := svc.GetRecentActivity(context.Background(), testCoin)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if result.Source != market.SourceAggregator {
		t.Fatalf("Source = %q, want %q", result.Source, market.SourceAggregator)
	}
	if len(result.Activities) != 10 {
		t.Fatalf("len(Activities) = %d, want 10", len(result.Activities))
	}
}

func TestGetRecentActivityRawFallback(t *testing.T) {
	swaps := &stubSwaps{}
	svc, now := newTestService(t, swaps, &stubSnapshots{}, &stubRates{})
	swaps.page = feeds.SwapPage{Records: swapsFixture(now, 4)}

	result, err := svc.GetRecentActivity(context.Background(), testCoin)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if result.Source != market.SourceRaw {
		t.Fatalf("Source = %q, want %q", result.Source, market.SourceRaw)
	}
	if len(result.Activities) != 4 {
		t.Fatalf("len(Activities) = %d, want 4", len(result.Activities))
	}
}

func TestGetRecentActivityEmpty(t *testing.T) {
	svc, _ := newTestService(t, &stubSwaps{}, &stubSnapshots{}, &stubRates{})

	result, err := svc.GetRecentActivity(context.Background(), testCoin)
	if err != nil {
		t.Fatalf("GetRecentActivity: %v", err)
	}
	if result.Source != market.SourceNone {
		t.Fatalf("Source = %q, want %q", result.Source, market.SourceNone)
	}
	if result.Activities == nil || len(result.Activities) != 0 {
		t.Fatalf("Activities = %v, want empty non-nil slice", result.Activities)
	}
	if result.Message != MsgNoData {
		t.Fatalf("Message = %q, want %q", result.Message, MsgNoData)
	}
}
