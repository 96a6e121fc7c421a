package live

import (
	"encoding/json"
	"strings"
	"sync"

	"coinpulse/internal/market"
)

// Ring capacities for the per-coin merge buffers.
const (
	maxLivePoints = 100
	maxLiveTrades = 10
)

// State names the feed's data-source mode. The chart consumes REST
// reconstructions until the first push event arrives, then flips to the
// live tail; a dropped transport flips it back off live until the
// caller resubscribes.
type State string

const (
	// StateCold: nothing fetched yet.
	StateCold State = "cold"
	// StatePolling: serving REST reconstructions, no push event seen.
	StatePolling State = "polling"
	// StateLive: at least one push event received; the live tail is
	// authoritative.
	StateLive State = "live"
	// StateReconnecting: transport dropped; last-known REST data serves
	// until the caller resubscribes.
	StateReconnecting State = "reconnecting"
)

// Feed folds push events for one coin into bounded buffers. Points are
// append-only in arrival order and never re-sorted against history;
// trades are most-recent-first. One Feed belongs to one subscription
// context.
type Feed struct {
	mu     sync.RWMutex
	coin   string
	state  State
	points []market.PricePoint
	trades []market.ActivityRecord
}

// NewFeed constructs a cold feed for a coin.
func NewFeed(coin string) *Feed {
	return &Feed{coin: coin, state: StateCold}
}

// Coin returns the subscribed coin address.
func (f *Feed) Coin() string { return f.coin }

// State returns the current source mode.
func (f *Feed) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Live reports whether push data is authoritative.
func (f *Feed) Live() bool { return f.State() == StateLive }

// StartPolling marks the initial REST load as done. Cold and
// reconnecting feeds move to polling; a live feed stays live.
func (f *Feed) StartPolling() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateCold || f.state == StateReconnecting {
		f.state = StatePolling
	}
}

// Disconnect flips the feed off live. Buffers are kept so the UI can
// keep rendering last-known data while the caller resubscribes.
func (f *Feed) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateReconnecting
}

// Apply folds one push event into the buffers. Any event, whatever its
// type, makes the feed live. Unknown event types only affect state.
func (f *Feed) Apply(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateLive

	switch ev.Type {
	case EventPriceUpdate:
		var pu PriceUpdate
		if err := json.Unmarshal(ev.Payload, &pu); err != nil {
			return
		}
		dir := market.Direction(strings.ToUpper(pu.Direction))
		if dir != market.Sell {
			// Pushed quotes carry no trade direction; default BUY.
			dir = market.Buy
		}
		f.points = append(f.points, market.PricePoint{
			Timestamp: ev.Timestamp,
			Price:     pu.Price,
			Volume:    pu.Volume24h,
			Direction: dir,
		})
		if len(f.points) > maxLivePoints {
			f.points = f.points[len(f.points)-maxLivePoints:]
		}

	case EventNewTrade:
		var trade TradeUpdate
		if err := json.Unmarshal(ev.Payload, &trade); err != nil {
			return
		}
		f.trades = append([]market.ActivityRecord{trade}, f.trades...)
		if len(f.trades) > maxLiveTrades {
			f.trades = f.trades[:maxLiveTrades]
		}
	}
}

// Points returns a copy of the live price tail, oldest first.
func (f *Feed) Points() []market.PricePoint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]market.PricePoint, len(f.points))
	copy(out, f.points)
	return out
}

// Trades returns a copy of the live trade list, most recent first.
func (f *Feed) Trades() []market.ActivityRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]market.ActivityRecord, len(f.trades))
	copy(out, f.trades)
	return out
}
