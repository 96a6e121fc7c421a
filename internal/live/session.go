package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"coinpulse/internal/market"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// controlMessage is what clients send: explicit subscribe/unsubscribe
// keyed by coin address, or a state query for an active subscription.
type controlMessage struct {
	Type string `json:"type"`
	Coin string `json:"coinAddress"`
}

// stateMessage is the reply to subscribe and state messages: the feed's
// current source mode plus the merged live tail, so a reconnecting
// client can recover buffered data without re-polling REST.
type stateMessage struct {
	Type      string                  `json:"type"`
	Coin      string                  `json:"coinAddress"`
	State     State                   `json:"state"`
	Points    []market.PricePoint     `json:"points"`
	Trades    []market.ActivityRecord `json:"trades"`
	Timestamp int64                   `json:"timestamp"`
}

// Session is one websocket connection. It owns one Feed per subscribed
// coin; feeds are discarded on unsubscribe and on disconnect.
type Session struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	feeds  map[string]*Feed
	closed bool

	closeOnce sync.Once
	logger    zerolog.Logger
}

// ServeWS upgrades an HTTP request into a hub session and starts its
// pumps.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, logger zerolog.Logger) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s := &Session{
		ID:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		feeds:  make(map[string]*Feed),
		logger: logger.With().Str("component", "live_session").Logger(),
	}
	hub.addSession(s)

	go s.writePump()
	go s.readPump()
	return nil
}

// NewDetachedSession builds a session with no websocket transport.
// In-process consumers of broadcasts, such as tests, read encoded
// events from Outbox instead of a connection.
func NewDetachedSession(hub *Hub, buffer int, logger zerolog.Logger) *Session {
	if buffer <= 0 {
		buffer = sendBuffer
	}
	s := &Session{
		ID:     uuid.NewString(),
		hub:    hub,
		send:   make(chan []byte, buffer),
		feeds:  make(map[string]*Feed),
		logger: logger.With().Str("component", "live_session").Logger(),
	}
	hub.addSession(s)
	return s
}

// Outbox exposes the session's encoded outbound events.
func (s *Session) Outbox() <-chan []byte { return s.send }

func (s *Session) attachFeed(coin string) *Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.feeds[coin]; ok {
		return f
	}
	f := NewFeed(coin)
	s.feeds[coin] = f
	return f
}

func (s *Session) detachFeed(coin string) {
	s.mu.Lock()
	delete(s.feeds, coin)
	s.mu.Unlock()
}

// Feed returns the session's view of a coin, if subscribed.
func (s *Session) Feed(coin string) (*Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[coin]
	return f, ok
}

// push hands an encoded frame to the write pump. Both the closed check
// and the channel send happen under the session mutex so a concurrent
// close can never race a send onto the closed channel.
func (s *Session) push(encoded []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- encoded:
		return true
	default:
		return false
	}
}

func (s *Session) deliver(ev Event, encoded []byte) {
	if f, ok := s.Feed(ev.Coin); ok {
		f.Apply(ev)
	}
	if !s.push(encoded) {
		// Backpressure or teardown: drop rather than stall the room.
		s.logger.Warn().Str("session", s.ID).Msg("event dropped, buffer full or session closed")
	}
}

// handleControl processes one client control frame.
func (s *Session) handleControl(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendError("invalid_json", "message is not valid JSON")
		return
	}
	if !market.ValidAddress(msg.Coin) {
		s.sendError("invalid_address", "coinAddress must be 0x followed by 40 hex characters")
		return
	}

	coin := market.NormalizeAddress(msg.Coin)
	switch msg.Type {
	case "subscribe":
		feed := s.hub.Subscribe(s, coin)
		// The client serves REST reconstructions until the first push
		// event arrives; the ack reports that mode explicitly.
		feed.StartPolling()
		s.sendState("subscribed", coin, feed)
	case "unsubscribe":
		s.hub.Unsubscribe(s, coin)
	case "state":
		if feed, ok := s.Feed(coin); ok {
			s.sendState("state", coin, feed)
		} else {
			s.sendError("not_subscribed", "no active subscription for coinAddress")
		}
	default:
		s.sendError("unknown_message_type", "type must be subscribe, unsubscribe, or state")
	}
}

func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Str("session", s.ID).Msg("unexpected close")
			}
			return
		}
		s.handleControl(raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) sendState(msgType, coin string, feed *Feed) {
	payload, err := json.Marshal(stateMessage{
		Type:      msgType,
		Coin:      coin,
		State:     feed.State(),
		Points:    feed.Points(),
		Trades:    feed.Trades(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	s.push(payload)
}

func (s *Session) sendError(code, message string) {
	payload, err := json.Marshal(map[string]any{
		"type":      "error",
		"code":      code,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	s.push(payload)
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		// Transport loss flips every feed off live; resubscription after
		// reconnect is the client's responsibility. The closed flag and
		// the channel close happen under the same mutex push uses, so
		// in-flight broadcasts drop instead of hitting a closed channel.
		s.mu.Lock()
		s.closed = true
		for _, f := range s.feeds {
			f.Disconnect()
		}
		close(s.send)
		s.mu.Unlock()

		s.hub.removeSession(s)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}
