// Package ws implements the WebSocket adapter: a broadcast hub for workflow
// events and the publisher for answers to api-source questions.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client is one dashboard connection. topics holds the event families
// ("answer", "approval") it asked for; empty means all of them.
type client struct {
	ws     *websocket.Conn
	topics map[string]bool
	stop   context.CancelFunc
}

func (c *client) wants(eventType string) bool {
	if len(c.topics) == 0 {
		return true
	}
	family, _, _ := strings.Cut(eventType, ".")
	return c.topics[family]
}

// Hub tracks dashboard connections and fans events out to them.
type Hub struct {
	originPatterns []string

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. originPatterns feed the handshake origin check; an
// empty list accepts same-origin clients only.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{originPatterns: originPatterns, clients: make(map[*client]struct{})}
}

// HandleWS upgrades the request. `?topics=approval,answer` limits which event
// families the client receives.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{ws: conn, topics: parseTopics(r.URL.Query().Get("topics"))}
	ctx, stop := context.WithCancel(context.WithoutCancel(r.Context()))
	c.stop = stop
	h.add(c)
	slog.Info("dashboard connected", "remote", r.RemoteAddr, "topics", r.URL.Query().Get("topics"))

	// Clients only listen; reading surfaces disconnects and control frames.
	go func() {
		defer h.drop(c, websocket.StatusNormalClosure, "")
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()
}

func parseTopics(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	topics := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[t] = true
		}
	}
	return topics
}

// Broadcast writes msg to every client subscribed to its family. Clients
// whose write fails are dropped.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(msg.Type) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("websocket write failed", "type", msg.Type, "error", err)
			h.drop(c, websocket.StatusInternalError, "write failed")
		}
	}
}

// ConnectionCount returns the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.drop(c, websocket.StatusGoingAway, "server shutdown")
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// drop forgets c and closes its socket; only the first call for a client
// has any effect.
func (h *Hub) drop(c *client, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.stop()
	if c.ws != nil {
		_ = c.ws.Close(code, reason)
	}
	slog.Info("dashboard disconnected")
}
