package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pkoinsight/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBuffer = 16
)

// Timing holds the keepalive settings of a client.
type Timing struct {
	PongWait   time.Duration
	PingPeriod time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.PongWait <= 0 {
		t.PongWait = 60 * time.Second
	}
	// pings must go out before the peer's pong deadline
	if t.PingPeriod <= 0 || t.PingPeriod >= t.PongWait {
		t.PingPeriod = (t.PongWait * 9) / 10
	}
	return t
}

// Client is a middleman between one websocket connection and the hub. It is
// bound to a single session for its whole life.
type Client struct {
	hub     *Hub
	conn    Connection
	handler *QueryHandler
	timing  Timing

	send chan []byte

	id          string
	sessionID   string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for conn attached to sessionID.
func NewClient(hub *Hub, conn Connection, handler *QueryHandler, sessionID, traceID string, timing Timing, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()

	remote := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		handler:     handler,
		timing:      timing.withDefaults(),
		send:        make(chan []byte, sendBuffer),
		id:          id,
		sessionID:   sessionID,
		traceID:     traceID,
		remoteAddr:  remote,
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
			slog.String("session_id", sessionID)),
	}
}

// ID returns the client ID.
func (c *Client) ID() string { return c.id }

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump reads client messages and queues one reply per message. It
// returns when the connection fails or ctx is done, and unregisters the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger.InfoContext(c.context(), "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(c.context(), "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.hub.messagesReceived.Add(1)

		reply, err := encode(c.handler.Handle(ctx, c.sessionID, message))
		if err != nil {
			c.logger.ErrorContext(c.context(), "Error marshaling reply",
				slog.String("error", err.Error()))
			continue
		}
		c.hub.deliver(c, reply)
	}
}

// WritePump writes queued messages and keepalive pings. It returns when
// the hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.timing.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.DebugContext(c.context(), "Error writing message to WebSocket",
					slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}
