package refresher

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/feeds"
	"coinpulse/internal/live"
	"coinpulse/internal/market"
	"coinpulse/internal/series"
)

// tradeChance is the per-tick probability of synthesizing a new-trade
// event alongside the price update for a coin with recent volume.
const tradeChance = 0.3

// Options tune the background refresh loop.
type Options struct {
	// Interval between refresh passes over the subscribed coins.
	Interval time.Duration
	// StartupDelay postpones the first pass so the server can finish
	// binding before upstream traffic starts.
	StartupDelay time.Duration
	// Batch paces the snapshot fetches within one pass.
	Batch feeds.BatchOptions
}

// Refresher periodically re-fetches market snapshots for every coin
// with at least one live subscriber and pushes the deltas into the hub.
type Refresher struct {
	opts      Options
	snapshots feeds.SnapshotSource
	hub       *live.Hub
	batcher   *feeds.Batcher
	activity  *series.ActivityBook
	rng       *rand.Rand
	logger    zerolog.Logger

	// lastPrice remembers the previous pass's price per coin so updates
	// can carry a movement direction.
	lastPrice map[string]float64
}

// New constructs the refresh loop. A nil rng falls back to a
// time-seeded source.
func New(opts Options, snapshots feeds.SnapshotSource, hub *live.Hub, activity *series.ActivityBook, rng *rand.Rand, logger zerolog.Logger) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := logger.With().Str("component", "refresher").Logger()
	return &Refresher{
		opts:      opts,
		snapshots: snapshots,
		hub:       hub,
		batcher:   feeds.NewBatcher(opts.Batch, log),
		activity:  activity,
		rng:       rng,
		logger:    log,
		lastPrice: make(map[string]float64),
	}
}

// Run blocks, refreshing subscribed coins every interval until ctx is
// cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	if r.opts.StartupDelay > 0 {
		timer := time.NewTimer(r.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshPass(ctx)
		}
	}
}

// refreshPass fetches a fresh snapshot for every subscribed coin in
// paced batches and broadcasts the results. Per-coin failures are
// logged and skipped; subscribers simply miss one tick.
func (r *Refresher) refreshPass(ctx context.Context) {
	coins := r.hub.ActiveCoins()
	if len(coins) == 0 {
		return
	}
	r.logger.Debug().Int("coins", len(coins)).Msg("refresh pass starting")

	errs := r.batcher.Run(ctx, coins, func(ctx context.Context, coin string) error {
		snapshot, err := r.snapshots.FetchSnapshot(ctx, coin)
		if err != nil {
			return err
		}
		if snapshot == nil || snapshot.PriceUSD <= 0 {
			return nil
		}
		r.publish(coin, snapshot)
		return nil
	})
	for coin, err := range errs {
		r.logger.Warn().Err(err).Str("coin", coin).Msg("refresh failed for coin")
	}
}

func (r *Refresher) publish(coin string, snapshot *market.MarketSnapshot) {
	now := time.Now().UnixMilli()

	direction := ""
	if prev, ok := r.lastPrice[coin]; ok {
		if snapshot.PriceUSD >= prev {
			direction = "buy"
		} else {
			direction = "sell"
		}
	}
	r.lastPrice[coin] = snapshot.PriceUSD

	ev, err := live.NewEvent(live.EventPriceUpdate, coin, live.PriceUpdate{
		Price:     snapshot.PriceUSD,
		Change24h: snapshot.PriceChange24h,
		Volume24h: snapshot.Volume24hUSD,
		Direction: direction,
		Liquidity: snapshot.LiquidityUSD,
	}, now)
	if err != nil {
		r.logger.Error().Err(err).Str("coin", coin).Msg("encoding price update failed")
		return
	}
	r.hub.Broadcast(ev)

	if snapshot.Volume24hUSD <= 0 || r.rng.Float64() >= tradeChance {
		return
	}
	records := r.activity.FromSnapshot(snapshot)
	if len(records) == 0 {
		return
	}
	trade := records[0]
	trade.BlockTime = now
	tradeEv, err := live.NewEvent(live.EventNewTrade, coin, trade, now)
	if err != nil {
		r.logger.Error().Err(err).Str("coin", coin).Msg("encoding trade update failed")
		return
	}
	r.hub.Broadcast(tradeEv)
}
