package live

import (
	"encoding/json"

	"coinpulse/internal/market"
)

// Event types pushed to subscribed clients.
const (
	EventPriceUpdate  = "price-update"
	EventNewTrade     = "new-trade"
	EventMarketUpdate = "market-update"
)

// Event is one push message scoped to a coin room.
type Event struct {
	Type      string          `json:"type"`
	Coin      string          `json:"coinAddress"`
	Payload   json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// PriceUpdate is the payload of a price-update event.
type PriceUpdate struct {
	Price     float64 `json:"currentPrice"`
	Change24h float64 `json:"priceChange24h"`
	Volume24h float64 `json:"volume24h"`
	Direction string  `json:"direction,omitempty"`
	MarketCap float64 `json:"marketCap,omitempty"`
	Liquidity float64 `json:"liquidity,omitempty"`
}

// TradeUpdate is the payload of a new-trade event.
type TradeUpdate = market.ActivityRecord

// MarketUpdate is the payload of a market-update event: aggregate
// stats with no per-coin price semantics.
type MarketUpdate struct {
	TotalMarketCap float64 `json:"totalMarketCap"`
	TotalVolume    float64 `json:"totalVolume"`
	TotalCoins     int     `json:"totalCoins"`
}

// NewEvent marshals a payload into a coin-scoped event.
func NewEvent(eventType, coin string, payload any, ts int64) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Coin: coin, Payload: raw, Timestamp: ts}, nil
}
