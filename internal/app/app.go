package app

import (
	"context"
	"errors"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"coinpulse/internal/cache"
	"coinpulse/internal/config"
	"coinpulse/internal/feeds"
	"coinpulse/internal/live"
	"coinpulse/internal/refresher"
	"coinpulse/internal/series"
	"coinpulse/internal/server"
	"coinpulse/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFeeds() (*feeds.SwapClient, *feeds.SnapshotClient, *feeds.RateClient) {
	swaps := feeds.NewSwapClient(feeds.SwapOptions{
		BaseURL:   a.Config.Indexer.BaseURL,
		Timeout:   a.Config.Indexer.RequestTimeout,
		UserAgent: a.Config.Indexer.UserAgent,
	}, a.Logger)

	snapshots := feeds.NewSnapshotClient(feeds.SnapshotOptions{
		BaseURL:   a.Config.Aggregator.BaseURL,
		Timeout:   a.Config.Aggregator.RequestTimeout,
		UserAgent: a.Config.Aggregator.UserAgent,
	}, a.Logger)

	rates := feeds.NewRateClient(feeds.RateOptions{
		BaseURL:   a.Config.RefRate.BaseURL,
		Asset:     a.Config.RefRate.Asset,
		Currency:  a.Config.RefRate.Currency,
		Timeout:   a.Config.RefRate.RequestTimeout,
		UserAgent: a.Config.Aggregator.UserAgent,
	}, a.Logger)

	return swaps, snapshots, rates
}

func (a *App) newService(c *cache.Cache) (*service.Service, *feeds.SnapshotClient) {
	swaps, snapshots, rates := a.newFeeds()

	pricing := a.Config.Pricing
	builder := series.NewBuilder(series.BuilderOptions{
		BuyDrift:        pricing.BuyDrift,
		SellDrift:       pricing.SellDrift,
		ClampBand:       pricing.ClampBand,
		TradeJitter:     pricing.TradeJitter,
		SyntheticJitter: pricing.SyntheticJitter,
		SyntheticFloor:  pricing.SyntheticFloor,
	}, nil, a.Logger)

	svc := service.New(service.Options{
		Swaps:        swaps,
		Snapshots:    snapshots,
		Rates:        rates,
		Builder:      builder,
		Converter:    series.NewConverter(a.Config.RefRate.FallbackRate, a.Logger),
		Windower:     series.NewWindower(),
		Activity:     series.NewActivityBook(nil, a.Logger),
		Cache:        c,
		SwapPageSize: a.Config.Indexer.SwapPageSize,
		FetchTimeout: a.Config.Indexer.RequestTimeout,
	}, a.Logger)
	return svc, snapshots
}

// Serve runs the API server, the websocket hub, and the background
// refresher until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	requestCache := cache.New(a.Config.Cache.TTL)
	go requestCache.Sweep(ctx, a.Config.Cache.SweepInterval)

	svc, snapshots := a.newService(requestCache)
	hub := live.NewHub(a.Logger)

	book := series.NewActivityBook(rand.New(rand.NewSource(time.Now().UnixNano())), a.Logger)
	refr := refresher.New(refresher.Options{
		Interval: a.Config.Refresher.Interval,
		Batch: feeds.BatchOptions{
			BatchSize: a.Config.Refresher.BatchSize,
			Rate:      rate.Limit(a.Config.Refresher.BatchesPerS),
		},
	}, snapshots, hub, book, nil, a.Logger)
	go func() {
		if err := refr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("refresher terminated with error")
		}
	}()

	srv := server.New(server.Options{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
	}, svc, hub, a.Logger)

	a.Logger.Info().Msg("starting api server")
	err := srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}

	a.Logger.Info().Msg("api server stopped")
	return nil
}
