package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	apierrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
	"pkoinsight/pkg/contracts/events"
)

// HandlerOptions configures the upgrade endpoint.
type HandlerOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins lists browser origins allowed to connect; empty means
	// same host only and "*" allows any.
	AllowedOrigins []string
	Timing         Timing
}

// Handler upgrades /ws/sessions/{sessionID} requests.
type Handler struct {
	ctx          context.Context
	hub          *Hub
	queries      *QueryHandler
	service      ViewService
	upgrader     websocket.Upgrader
	timing       Timing
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewHandler creates the upgrade handler. ctx bounds every connection it
// accepts; cancelling it ends their read loops.
func NewHandler(ctx context.Context, hub *Hub, queries *QueryHandler, service ViewService, opts HandlerOptions, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		ctx:          ctx,
		hub:          hub,
		queries:      queries,
		service:      service,
		timing:       opts.Timing,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "websocket.handler")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

// ServeHTTP checks the session, upgrades the connection and runs the client
// until it disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	res, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote an HTTP error
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	client := NewClient(h.hub, conn, h.queries, sessionID, traceID, h.timing, h.logger)
	h.hub.Register(client)

	hello, err := encode(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{Type: events.MessageTypeConnected, Timestamp: time.Now().UTC(), TraceID: traceID},
		Data: events.ConnectedData{
			Protocol:  events.ProtocolVersion,
			SessionID: sessionID,
			ClientID:  client.ID(),
			Rows:      res.Session.Rows,
		},
	})
	if err == nil {
		h.hub.deliver(client, hello)
	}

	go client.WritePump()
	client.ReadPump(h.ctx)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
