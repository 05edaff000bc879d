package websocket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pkoinsight/internal/infrastructure"
	"pkoinsight/pkg/contracts/events"
)

// Hub tracks the connected clients of every session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		metrics: metrics,
		logger:  logger.With(slog.String("component", "websocket.hub")),
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.totalConnections.Add(1)
	ctx := c.context()
	h.metrics.WebSocketDelta(ctx, 1)
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", c.id),
		slog.String("session_id", c.sessionID),
		slog.String("remote_addr", c.remoteAddr))
}

// Unregister removes a client and closes its send channel. It is safe to
// call more than once.
func (h *Hub) Unregister(c *Client) {
	if !h.drop(c) {
		return
	}
	ctx := c.context()
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", h.ClientCount()),
		slog.String("client_id", c.id),
		slog.Duration("connection_duration", time.Since(c.connectedAt)))
}

func (h *Hub) drop(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.WebSocketDelta(c.context(), -1)
	return true
}

// deliver queues msg for c. A full buffer drops the message rather than
// blocking the reader.
func (h *Hub) deliver(c *Client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		h.messagesSent.Add(1)
		return true
	default:
		h.messagesDropped.Add(1)
		h.logger.WarnContext(c.context(), "Client send buffer full, message dropped",
			slog.String("client_id", c.id))
		return false
	}
}

// CloseSession sends a fatal error to every client of sessionID and
// disconnects them. It returns the number of clients closed.
func (h *Hub) CloseSession(sessionID, reason string) int {
	msg, err := encode(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{Type: events.MessageTypeError, Timestamp: time.Now().UTC()},
		Data: events.ErrorData{
			Code:    events.ErrCodeSessionNotFound,
			Message: "session " + reason,
			Fatal:   true,
		},
	})
	if err != nil {
		return 0
	}

	h.mu.Lock()
	var closing []*Client
	for c := range h.clients {
		if c.sessionID != sessionID {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
		delete(h.clients, c)
		close(c.send)
		closing = append(closing, c)
	}
	h.mu.Unlock()

	for _, c := range closing {
		h.metrics.WebSocketDelta(c.context(), -1)
	}
	if len(closing) > 0 {
		h.logger.Info("Session clients disconnected",
			slog.String("session_id", sessionID),
			slog.String("reason", reason),
			slog.Int("clients", len(closing)))
	}
	return len(closing)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of clients attached to sessionID.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.sessionID == sessionID {
			n++
		}
	}
	return n
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.metrics.WebSocketDelta(c.context(), -1)
	}
}

// Run logs hub statistics every interval until ctx is done, then
// disconnects all clients.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.CloseAll()
			h.logger.Info("Hub shutting down")
			return
		case <-ticker.C:
			h.logger.Info("WebSocket hub metrics", h.statsAttrs()...)
		}
	}
}

// Stats returns current hub counters.
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"active_clients":    h.ClientCount(),
		"total_connections": h.totalConnections.Load(),
		"messages_sent":     h.messagesSent.Load(),
		"messages_received": h.messagesReceived.Load(),
		"messages_dropped":  h.messagesDropped.Load(),
	}
}

func (h *Hub) statsAttrs() []any {
	return []any{
		slog.Int("active_clients", h.ClientCount()),
		slog.Int64("total_connections", h.totalConnections.Load()),
		slog.Int64("messages_sent", h.messagesSent.Load()),
		slog.Int64("messages_received", h.messagesReceived.Load()),
		slog.Int64("messages_dropped", h.messagesDropped.Load()),
	}
}
