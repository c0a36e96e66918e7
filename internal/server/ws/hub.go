// Package ws streams engine notifications to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are left to the CORS allow-list in front of the server.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Config captures runtime metadata sent to clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
	// Channel is the signal bus pattern carrying notifications, e.g.
	// "wager:*". Ignored when the hub has no bus.
	Channel string
}

// event is one notification routed through the hub.
type event struct {
	kind    domain.NotificationKind
	matchID uint64
	frame   []byte
}

// Hub fans notifications out to connected clients. It receives them either
// from the signal bus (so every instance sees every engine's notifications)
// or directly through Emit when the process runs without Redis.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	channel    string
	mu         sync.RWMutex
	logger     *slog.Logger
	mode       string
	startedAt  time.Time
}

// NewHub creates a hub. bus may be nil.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		channel:    cfg.Channel,
		logger:     logger.With(slog.String("component", "ws")),
		mode:       cfg.Mode,
		startedAt:  startedAt,
	}
}

// Run drives the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	if h.bus != nil && h.channel != "" {
		msgs, err := h.bus.Subscribe(ctx, h.channel)
		if err != nil {
			return fmt.Errorf("ws: subscribe %s: %w", h.channel, err)
		}
		go h.forward(ctx, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", h.ClientCount()))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", h.ClientCount()))

		case ev := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(ev) {
					continue
				}
				select {
				case c.send <- ev.frame:
				default:
					h.logger.Warn("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward moves bus payloads into the broadcast loop.
func (h *Hub) forward(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				h.logger.Warn("bus subscription closed", slog.String("channel", h.channel))
				return
			}
			ev, err := newEvent(payload)
			if err != nil {
				h.logger.Warn("dropping malformed notification", slog.String("error", err.Error()))
				continue
			}
			h.enqueue(ctx, ev)
		}
	}
}

// Emit implements domain.NotificationSink for in-process delivery.
func (h *Hub) Emit(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("ws: marshal %s: %w", n.Kind, err)
	}
	ev, err := newEvent(payload)
	if err != nil {
		return err
	}
	h.enqueue(ctx, ev)
	return nil
}

func (h *Hub) enqueue(ctx context.Context, ev event) {
	select {
	case h.broadcast <- ev:
	case <-ctx.Done():
	case <-h.done:
	}
}

func newEvent(payload []byte) (event, error) {
	var head struct {
		Kind    domain.NotificationKind `json:"kind"`
		MatchID uint64                  `json:"match_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return event{}, fmt.Errorf("ws: decode notification: %w", err)
	}
	frame, err := json.Marshal(map[string]any{
		"type":    "notification",
		"payload": json.RawMessage(payload),
	})
	if err != nil {
		return event{}, err
	}
	return event{kind: head.Kind, matchID: head.MatchID, frame: frame}, nil
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		kinds:   make(map[domain.NotificationKind]bool),
		matches: make(map[uint64]bool),
	}

	c.sendHello()

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ domain.NotificationSink = (*Hub)(nil)
