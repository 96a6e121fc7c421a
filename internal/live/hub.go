package live

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Hub owns the per-coin rooms. There is one hub per process; every
// subscriber of a coin receives the same events fanned out from it,
// while each subscriber keeps its own Feed view.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	logger   zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		logger:   logger.With().Str("component", "live_hub").Logger(),
	}
}

func (h *Hub) addSession(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug().Str("session", s.ID).Msg("session connected")
}

func (h *Hub) removeSession(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	for coin, room := range h.rooms {
		if _, ok := room[s]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(h.rooms, coin)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug().Str("session", s.ID).Msg("session disconnected")
}

// Subscribe joins a session to a coin room and hands it a fresh Feed.
func (h *Hub) Subscribe(s *Session, coin string) *Feed {
	h.mu.Lock()
	room, ok := h.rooms[coin]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[coin] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()

	feed := s.attachFeed(coin)
	h.logger.Debug().Str("session", s.ID).Str("coin", coin).Msg("subscribed")
	return feed
}

// Unsubscribe removes a session from a coin room and discards its Feed.
func (h *Hub) Unsubscribe(s *Session, coin string) {
	h.mu.Lock()
	if room, ok := h.rooms[coin]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, coin)
		}
	}
	h.mu.Unlock()

	s.detachFeed(coin)
	h.logger.Debug().Str("session", s.ID).Str("coin", coin).Msg("unsubscribed")
}

// ActiveCoins lists coins with at least one subscriber. The background
// refresher polls exactly this set.
func (h *Hub) ActiveCoins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	coins := make([]string, 0, len(h.rooms))
	for coin := range h.rooms {
		coins = append(coins, coin)
	}
	return coins
}

// Subscribers reports the size of a coin room.
func (h *Hub) Subscribers(coin string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[coin])
}

// Broadcast fans an event out to every subscriber of its coin room.
// The event is encoded once; slow sessions drop the message rather
// than blocking the fan-out.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	room := h.rooms[ev.Coin]
	targets := make([]*Session, 0, len(room))
	for s := range room {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(ev, data)
	}
}
