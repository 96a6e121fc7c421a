package market

import (
	"time"
)

// Direction marks which side of a swap the tracked coin was on.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// SwapRecord is a raw on-chain trade event as delivered by the ledger
// indexer. Ordering is not guaranteed by the source.
type SwapRecord struct {
	Direction  Direction `json:"direction"`
	CoinAmount string    `json:"coinAmount"`
	Sender     string    `json:"senderAddress"`
	// BlockTime is normalised to epoch milliseconds on ingress; zero
	// means the upstream timestamp could not be parsed.
	BlockTime int64  `json:"blockTimestamp"`
	TxHash    string `json:"transactionHash"`
}

// MarketSnapshot is a point-in-time aggregate for a coin's best
// (max-liquidity) trading pair.
type MarketSnapshot struct {
	PriceUSD       float64 `json:"priceUsd"`
	PriceChange24h float64 `json:"priceChange24h"`
	Volume24hUSD   float64 `json:"volume24hUsd"`
	LiquidityUSD   float64 `json:"liquidityUsd"`
	PairAddress    string  `json:"pairAddress"`
}

// PricePoint is the canonical chart unit. Series handed to callers are
// always in non-decreasing timestamp order.
type PricePoint struct {
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Direction Direction `json:"type"`
}

// ReferenceRateSample is one hourly bucket of the gas token's USD price.
type ReferenceRateSample struct {
	HourBucket int64   `json:"hourBucket"`
	PriceUSD   float64 `json:"priceUsd"`
}

// ActivityRecord is the feed-facing alias of a trade after source
// normalisation.
type ActivityRecord struct {
	Direction  Direction `json:"activityType"`
	CoinAmount string    `json:"coinAmount"`
	Sender     string    `json:"senderAddress"`
	BlockTime  int64     `json:"blockTimestamp"`
	TxHash     string    `json:"transactionHash"`
}

// ActivitySource identifies which source in the fallback chain produced
// an activity list.
type ActivitySource string

const (
	SourceAggregator ActivitySource = "aggregator"
	SourceRaw        ActivitySource = "raw"
	SourceNone       ActivitySource = "none"
)

// HourMs is one hour in epoch milliseconds.
const HourMs = int64(time.Hour / time.Millisecond)

// BucketHour rounds an epoch-millisecond timestamp down to the hour.
func BucketHour(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts - ts%HourMs
}
