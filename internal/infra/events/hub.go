package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bytebill/internal/domain/model"
	"bytebill/internal/domain/ports/adapter"
	"bytebill/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var _ adapter.AccessEventPublisher = (*Hub)(nil)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Network control is authenticated by token, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope written to subscribers.
type Message struct {
	Type string            `json:"type"`
	Data model.AccessEvent `json:"data"`
}

// outbound is one encoded event and the kind it is counted under.
type outbound struct {
	kind string
	data []byte
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan outbound
	id   string
}

// Hub fans access events out to connected network-control subscribers.
// Publish never blocks: a full hub queue or a slow subscriber drops events.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	observe    func(kind, result string) // queued, delivered, dropped
	log        *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "EventHub").Logger()
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan outbound, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		observe:    metrics.IncAccessEvent,
		log:        &l,
	}
}

// Run owns the subscriber set until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Info().Str("client", c.id).Msg("subscriber connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info().Str("client", c.id).Msg("subscriber disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
					h.observe(msg.kind, "dropped")
					h.log.Warn().Str("client", c.id).Msg("subscriber too slow, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Publish(_ context.Context, ev model.AccessEvent) {
	data, err := json.Marshal(Message{Type: string(ev.Type), Data: ev})
	if err != nil {
		h.log.Error().Err(err).Str("session_id", ev.SessionID).Msg("marshal access event")
		return
	}
	select {
	case h.broadcast <- outbound{kind: string(ev.Type), data: data}:
		h.observe(string(ev.Type), "queued")
		h.log.Debug().Str("type", string(ev.Type)).Str("mac", ev.MAC).Str("session_id", ev.SessionID).Msg("access event")
	default:
		h.observe(string(ev.Type), "dropped")
		h.log.Warn().Str("type", string(ev.Type)).Str("mac", ev.MAC).Msg("event queue full, dropped")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and subscribes the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan outbound, sendBuffer), id: uuid.NewString()}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump only services control frames; subscribers do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("client", c.id).Msg("subscriber read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				c.hub.observe(msg.kind, "dropped")
				return
			}
			c.hub.observe(msg.kind, "delivered")
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
