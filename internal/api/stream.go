package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/carbon-monster/internal/engine"
)

const (
	maxStreamConns = 8
	catchupEvents  = 50
	subscriberBuf  = 64
	writeWait      = 5 * time.Second
	heartbeatEvery = 15 * time.Second
)

// Message is one frame on the notification stream.
type Message struct {
	Type   string         `json:"type"` // "event" or "turn"
	Event  *engine.Event  `json:"event,omitempty"`
	Report *engine.Report `json:"report,omitempty"`
}

// hub fans messages out to stream subscribers. Slow subscribers lose messages
// rather than stall the game.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Message
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Message)}
}

func (h *hub) subscribe() (int, <-chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan Message, subscriberBuf)
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *hub) publish(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- m:
		default:
			slog.Debug("stream subscriber lagging, message dropped", "sub_id", id, "type", m.Type)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowedOrigins()[origin]
	},
}

// handleStream upgrades to a websocket, replays recent events and then pushes
// every new event and turn report until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub.count() >= maxStreamConns {
		writeError(w, http.StatusServiceUnavailable, "too many stream connections")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Subscribe under the game lock so nothing falls between catch-up and live.
	s.mu.Lock()
	catchup := s.game.RecentEvents(catchupEvents)
	id, ch := s.hub.subscribe()
	s.mu.Unlock()
	defer s.hub.unsubscribe(id)

	slog.Info("stream client connected", "sub_id", id, "remote", clientIP(r))

	// Clients only send control frames; reading surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(m Message) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}
	for i := range catchup {
		if err := send(Message{Type: "event", Event: &catchup[i]}); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return
			}
			if err := send(m); err != nil {
				slog.Debug("stream write failed", "sub_id", id, "error", err)
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", id)
			return
		case <-r.Context().Done():
			return
		}
	}
}
