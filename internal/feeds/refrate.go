package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

// RateOptions parameterise the reference-rate client.
type RateOptions struct {
	BaseURL   string
	Asset     string
	Currency  string
	Timeout   time.Duration
	UserAgent string
}

// RateClient fetches the gas token's historical USD price series and
// folds it into an hour-bucketed lookup table.
type RateClient struct {
	opts    RateOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewRateClient constructs a reference-rate client.
func NewRateClient(opts RateOptions, logger zerolog.Logger) *RateClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Asset == "" {
		opts.Asset = "ethereum"
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}

	return &RateClient{
		opts:    opts,
		logger:  logger.With().Str("component", "rate_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type marketChartPayload struct {
	Prices [][2]float64 `json:"prices"`
}

// FetchRateSeries returns hour-bucket -> USD price for the trailing
// number of days. Later samples within the same hour win.
func (c *RateClient) FetchRateSeries(ctx context.Context, days int) (map[int64]float64, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("reference rate base url not configured")
	}
	if days <= 0 {
		days = 7
	}

	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=%s&days=%d",
		c.baseURL, c.opts.Asset, c.opts.Currency, days)
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
		return nil, fmt.Errorf("%w: rate feed status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload marketChartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode market chart: %v", ErrUpstreamUnavailable, err)
	}

	rates := make(map[int64]float64, len(payload.Prices))
	for _, sample := range payload.Prices {
		ts := int64(sample[0])
		if ts <= 0 || sample[1] <= 0 {
			continue
		}
		rates[market.BucketHour(ts)] = sample[1]
	}

	c.logger.Debug().Int("buckets", len(rates)).Int("days", days).Msg("loaded reference rate series")
	return rates, nil
}

var _ RateSource = (*RateClient)(nil)
