// Package stream pushes alert events to WebSocket subscribers as captures
// are processed.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// Event types pushed over the wire.
const (
	EventChangeSet       = "changeset"
	EventHealth          = "health"
	EventWithdrawalAlert = "withdrawal_alert"
)

// AlertEvent is one JSON message pushed to subscribers.
type AlertEvent struct {
	Type       string `json:"type"`
	SnapshotID string `json:"snapshot_id"`
	CapturedAt int64  `json:"captured_at"`

	// Client fields, unset for changeset events
	ClientID int64    `json:"client_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Level    string   `json:"level,omitempty"`
	Status   string   `json:"status,omitempty"`
	Reasons  []string `json:"reasons,omitempty"`

	// Summary, set for changeset events only
	Summary *domain.ChangeSummary `json:"summary,omitempty"`
}

// HubConfig configures subscriber connection behavior.
type HubConfig struct {
	// WriteTimeout is timeout for writing messages to a subscriber.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Hub fans alert events out to all connected WebSocket subscribers. A
// subscriber that cannot keep up is dropped rather than blocking the rest.
type Hub struct {
	log      zerolog.Logger
	config   HubConfig
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a hub and starts its ping loop.
func NewHub(log zerolog.Logger, config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}

	h := &Hub{
		log:    log,
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}

	h.wg.Add(1)
	go h.pingLoop()

	return h
}

// HandleWS upgrades an HTTP request to a WebSocket subscription. The
// connection stays registered until the client disconnects or the hub closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conns[conn] = struct{}{}
	// Add under the same lock as registration, so Close cannot start
	// waiting between the closed-check and the Add.
	h.wg.Add(1)
	h.mu.Unlock()

	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("subscriber connected")

	// Drain reads so control frames are processed and closes detected
	go func() {
		defer h.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Broadcast sends an event to every subscriber. Failed writes drop the
// subscriber; the event is not retried.
func (h *Hub) Broadcast(ev AlertEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal alert event")
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Debug().Err(err).Msg("subscriber write failed, dropping")
			h.drop(c)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects all subscribers and stops the hub.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	close(h.done)

	for _, c := range conns {
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
	}

	h.wg.Wait()
	return nil
}

// drop unregisters and closes one connection.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// pingLoop sends periodic ping frames to keep connections alive.
func (h *Hub) pingLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(h.conns))
			for c := range h.conns {
				conns = append(conns, c)
			}
			h.mu.Unlock()

			for _, c := range conns {
				c.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.drop(c)
				}
			}
		}
	}
}
