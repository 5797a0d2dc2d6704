package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/narration"
	"github.com/gorilla/websocket"
)

// Event types on the /v1/events stream.
const (
	EventNotice   = "notice"
	EventSnapshot = "snapshot"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 512
	clientBuffer   = 32
	broadcastQueue = 64
)

// Event is one message on the event stream.
type Event struct {
	Type     string              `json:"type"`
	Notice   *narration.Notice   `json:"notice,omitempty"`
	Snapshot *narration.Snapshot `json:"snapshot,omitempty"`
}

// NoticeEvent wraps a notice.
func NoticeEvent(n narration.Notice) Event {
	return Event{Type: EventNotice, Notice: &n}
}

// SnapshotEvent wraps a snapshot.
func SnapshotEvent(s narration.Snapshot) Event {
	return Event{Type: EventSnapshot, Snapshot: &s}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans narration events out to websocket subscribers. Subscribers that
// fall behind are disconnected.
type Hub struct {
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
}

// NewHub creates a hub. Run must be started before subscribers connect.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastQueue),
		done:       make(chan struct{}),
	}
}

// Run dispatches events until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("event subscriber joined", "subscribers", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("event subscriber left", "subscribers", len(h.clients))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("dropping slow event subscriber")
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish queues an event for all subscribers. It never blocks; events are
// dropped when the queue is full.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("event queue full, dropping event", "type", ev.Type)
	}
}

// PublishNotice publishes a narration notice.
func (h *Hub) PublishNotice(n narration.Notice) {
	h.Publish(NoticeEvent(n))
}

// PublishSnapshot publishes a narration snapshot.
func (h *Hub) PublishSnapshot(s narration.Snapshot) {
	h.Publish(SnapshotEvent(s))
}

// Serve upgrades the request and subscribes the connection. The initial
// events are sent before any broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial ...Event) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	for _, ev := range initial {
		if msg, err := json.Marshal(ev); err == nil {
			c.send <- msg
		}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound messages and unregisters the client when the
// connection drops.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("event subscriber read error", "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvents handles GET /v1/events. New subscribers first receive the
// current snapshot of each controller.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var initial []Event
	for _, n := range []Narrator{s.deps.Story, s.deps.Responder} {
		if n != nil {
			initial = append(initial, SnapshotEvent(n.Snapshot()))
		}
	}
	s.deps.Hub.Serve(w, r, initial...)
}
