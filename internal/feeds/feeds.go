package feeds

import (
	"context"
	"errors"

	"coinpulse/internal/market"
)

// ErrUpstreamUnavailable wraps transport and non-2xx failures from any
// feed. Callers fall through to the next source in their chain and only
// surface it when every source has failed.
var ErrUpstreamUnavailable = errors.New("feeds: upstream unavailable")

// SwapPage is one page of swap records from the ledger indexer.
type SwapPage struct {
	Records []market.SwapRecord
	HasMore bool
	Cursor  string
}

// SwapSource retrieves raw trade records for a coin.
type SwapSource interface {
	FetchSwaps(ctx context.Context, coin string, count int, cursor string) (SwapPage, error)
}

// SnapshotSource retrieves the current market snapshot for a coin.
// A nil snapshot with a nil error means no trading pair exists, which
// is a legitimate outcome rather than a failure.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, coin string) (*market.MarketSnapshot, error)
}

// RateSource retrieves the gas token's historical USD price, bucketed
// by hour.
type RateSource interface {
	FetchRateSeries(ctx context.Context, days int) (map[int64]float64, error)
}
