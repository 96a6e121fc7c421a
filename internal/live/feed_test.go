package live

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

const feedCoin = "0x1bc80ba8ca1be52afd3c58e9998968b9a1bc80ba"

func mustEvent(t *testing.T, eventType string, payload any, ts int64) Event {
	t.Helper()
	ev, err := NewEvent(eventType, feedCoin, payload, ts)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func TestFeedStateTransitions(t *testing.T) {
	f := NewFeed(feedCoin)
	if f.State() != StateCold {
		t.Fatalf("new feed should be cold, got %s", f.State())
	}

	f.StartPolling()
	if f.State() != StatePolling {
		t.Fatalf("after initial load: %s", f.State())
	}

	f.Apply(mustEvent(t, EventPriceUpdate, PriceUpdate{Price: 0.004}, 1000))
	if !f.Live() {
		t.Fatal("first event should flip the feed live")
	}

	f.Disconnect()
	if f.State() != StateReconnecting || f.Live() {
		t.Fatalf("disconnect should leave reconnecting, got %s", f.State())
	}

	// A live feed must not regress to polling on a late initial load.
	f.Apply(mustEvent(t, EventPriceUpdate, PriceUpdate{Price: 0.0041}, 2000))
	f.StartPolling()
	if f.State() != StateLive {
		t.Fatalf("live feed regressed to %s", f.State())
	}
}

func TestFeedTradePrependAndCap(t *testing.T) {
	f := NewFeed(feedCoin)

	for i := 0; i < 3; i++ {
		trade := TradeUpdate{
			Direction:  market.Buy,
			CoinAmount: strconv.Itoa(i),
			BlockTime:  int64(1000 * (i + 1)),
			TxHash:     fmt.Sprintf("0x%d", i),
		}
		f.Apply(mustEvent(t, EventNewTrade, trade, trade.BlockTime))
	}

	trades := f.Trades()
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	for i, want := range []string{"2", "1", "0"} {
		if trades[i].CoinAmount != want {
			t.Fatalf("trades not in reverse-arrival order: %+v", trades)
		}
	}

	// Push past the cap; only the 10 newest survive.
	for i := 3; i < 20; i++ {
		trade := TradeUpdate{Direction: market.Sell, CoinAmount: strconv.Itoa(i), BlockTime: int64(1000 * (i + 1))}
		f.Apply(mustEvent(t, EventNewTrade, trade, trade.BlockTime))
	}
	trades = f.Trades()
	if len(trades) != 10 {
		t.Fatalf("trade cap broken: %d", len(trades))
	}
	if trades[0].CoinAmount != "19" {
		t.Fatalf("newest trade should lead, got %s", trades[0].CoinAmount)
	}
}

func TestFeedPointCapAndArrivalOrder(t *testing.T) {
	f := NewFeed(feedCoin)
	for i := 0; i < 150; i++ {
		f.Apply(mustEvent(t, EventPriceUpdate, PriceUpdate{Price: float64(i)}, int64(i)))
	}

	points := f.Points()
	if len(points) != 100 {
		t.Fatalf("point cap broken: %d", len(points))
	}
	if points[0].Price != 50 || points[99].Price != 149 {
		t.Fatalf("ring should keep the newest 100 in arrival order: first=%v last=%v", points[0].Price, points[99].Price)
	}
	if points[0].Direction != market.Buy {
		t.Fatal("price updates without a direction default to BUY")
	}
}

func TestHubRoomsAndBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a := &Session{ID: "a", hub: hub, send: make(chan []byte, 8), feeds: make(map[string]*Feed), logger: zerolog.Nop()}
	b := &Session{ID: "b", hub: hub, send: make(chan []byte, 8), feeds: make(map[string]*Feed), logger: zerolog.Nop()}
	hub.addSession(a)
	hub.addSession(b)

	feedA := hub.Subscribe(a, feedCoin)
	feedB := hub.Subscribe(b, feedCoin)
	if hub.Subscribers(feedCoin) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", hub.Subscribers(feedCoin))
	}

	ev := mustEvent(t, EventPriceUpdate, PriceUpdate{Price: 0.004}, 1)
	hub.Broadcast(ev)

	// Each subscriber got its own view updated plus the wire message.
	if len(feedA.Points()) != 1 || len(feedB.Points()) != 1 {
		t.Fatal("both subscriber feeds should fold the event")
	}
	select {
	case <-a.send:
	default:
		t.Fatal("session a received no wire message")
	}

	hub.Unsubscribe(b, feedCoin)
	if hub.Subscribers(feedCoin) != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", hub.Subscribers(feedCoin))
	}
	if _, ok := b.Feed(feedCoin); ok {
		t.Fatal("unsubscribe should discard the feed view")
	}

	coins := hub.ActiveCoins()
	if len(coins) != 1 || coins[0] != feedCoin {
		t.Fatalf("active coins wrong: %v", coins)
	}
}
