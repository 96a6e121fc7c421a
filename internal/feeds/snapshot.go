package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

// SnapshotOptions parameterise the aggregator client.
type SnapshotOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// SnapshotClient fetches per-token pair summaries from the market
// aggregator and reduces them to the max-liquidity pair.
type SnapshotClient struct {
	opts    SnapshotOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewSnapshotClient constructs an aggregator client.
func NewSnapshotClient(opts SnapshotOptions, logger zerolog.Logger) *SnapshotClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SnapshotClient{
		opts:    opts,
		logger:  logger.With().Str("component", "snapshot_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// The aggregator reports most numeric fields as decimal strings.
type pairPayload struct {
	PairAddress string `json:"pairAddress"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type tokenPayload struct {
	Pairs []pairPayload `json:"pairs"`
}

// FetchSnapshot returns the max-liquidity pair snapshot for a coin, or
// nil when the aggregator knows no trading pair for it.
func (c *SnapshotClient) FetchSnapshot(ctx context.Context, coin string) (*market.MarketSnapshot, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("aggregator base url not configured")
	}

	endpoint := c.baseURL + "/latest/dex/tokens/" + market.NormalizeAddress(coin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: aggregator status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode token payload: %v", ErrUpstreamUnavailable, err)
	}

	best := bestPair(payload.Pairs)
	if best == nil {
		return nil, nil
	}

	price, _ := strconv.ParseFloat(best.PriceUSD, 64)
	if price <= 0 {
		// A pair without a usable price is treated the same as no pair.
		return nil, nil
	}

	c.logger.Debug().
		Str("coin", coin).
		Str("pair", best.PairAddress).
		Float64("liquidity_usd", best.Liquidity.USD).
		Msg("selected max-liquidity pair")

	return &market.MarketSnapshot{
		PriceUSD:       price,
		PriceChange24h: best.PriceChange.H24,
		Volume24hUSD:   best.Volume.H24,
		LiquidityUSD:   best.Liquidity.USD,
		PairAddress:    best.PairAddress,
	}, nil
}

func bestPair(pairs []pairPayload) *pairPayload {
	var best *pairPayload
	for i := range pairs {
		if best == nil || pairs[i].Liquidity.USD > best.Liquidity.USD {
			best = &pairs[i]
		}
	}
	return best
}

var _ SnapshotSource = (*SnapshotClient)(nil)
