package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

const defaultSwapCount = 100

// SwapOptions parameterise the ledger-indexer client.
type SwapOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// SwapClient fetches swap activity pages from the ledger indexer.
type SwapClient struct {
	opts    SwapOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewSwapClient constructs a ledger-indexer client.
func NewSwapClient(opts SwapOptions, logger zerolog.Logger) *SwapClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SwapClient{
		opts:    opts,
		logger:  logger.With().Str("component", "swap_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type swapEnvelope struct {
	Swaps []struct {
		ActivityType string          `json:"activityType"`
		CoinAmount   string          `json:"coinAmount"`
		Sender       string          `json:"senderAddress"`
		BlockTime    market.FlexTime `json:"blockTimestamp"`
		TxHash       string          `json:"transactionHash"`
	} `json:"swaps"`
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// FetchSwaps retrieves up to count swap records for a coin. Records with
// unparsable or non-positive timestamps are dropped on ingress.
func (c *SwapClient) FetchSwaps(ctx context.Context, coin string, count int, cursor string) (SwapPage, error) {
	if c.baseURL == "" {
		return SwapPage{}, fmt.Errorf("swap indexer base url not configured")
	}
	if count <= 0 {
		count = defaultSwapCount
	}

	q := url.Values{}
	q.Set("first", strconv.Itoa(count))
	if cursor != "" {
		q.Set("after", cursor)
	}
	endpoint := c.baseURL + "/coins/" + market.NormalizeAddress(coin) + "/swaps?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return SwapPage{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return SwapPage{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SwapPage{}, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return SwapPage{}, fmt.Errorf("%w: indexer status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env swapEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return SwapPage{}, fmt.Errorf("%w: decode swaps: %v", ErrUpstreamUnavailable, err)
	}

	page := SwapPage{HasMore: env.HasNextPage, Cursor: env.EndCursor}
	dropped := 0
	for _, raw := range env.Swaps {
		ts := raw.BlockTime.Millis()
		if ts <= 0 {
			dropped++
			continue
		}
		dir := market.Direction(strings.ToUpper(raw.ActivityType))
		if dir != market.Buy && dir != market.Sell {
			dropped++
			continue
		}
		page.Records = append(page.Records, market.SwapRecord{
			Direction:  dir,
			CoinAmount: raw.CoinAmount,
			Sender:     raw.Sender,
			BlockTime:  ts,
			TxHash:     raw.TxHash,
		})
	}
	if dropped > 0 {
		c.logger.Debug().Int("dropped", dropped).Str("coin", coin).Msg("skipped malformed swap records")
	}

	return page, nil
}

var _ SwapSource = (*SwapClient)(nil)
