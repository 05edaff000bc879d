package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
	mw "pkoinsight/internal/middleware"
	api "pkoinsight/pkg/contracts/api/v1"
	"pkoinsight/pkg/contracts/events"
)

// DefaultQueryTimeout bounds a single query.
const DefaultQueryTimeout = 15 * time.Second

// QueryHandler turns one inbound message into one reply.
type QueryHandler struct {
	service   ViewService
	validator *mw.Validator
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewQueryHandler creates a handler answering queries through service.
func NewQueryHandler(service ViewService, validator *mw.Validator, timeout time.Duration, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &QueryHandler{
		service:   service,
		validator: validator,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "websocket.query")),
		now:       time.Now,
	}
}

// Handle answers a raw client message for sessionID. query messages get a
// view or error reply and ping gets pong.
func (h *QueryHandler) Handle(ctx context.Context, sessionID string, raw []byte) events.WebSocketMessage {
	ctx = infrastructure.EnsureTraceID(ctx)

	var in events.InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return h.errorMessage(ctx, "", events.ErrorData{
			Code:    events.ErrCodeInvalidMessage,
			Message: "message is not valid JSON",
		})
	}

	switch in.Type {
	case events.MessageTypePing:
		return h.message(ctx, in.ID, events.MessageTypePong, nil)

	case events.MessageTypeQuery:
		return h.query(ctx, sessionID, in)

	default:
		return h.errorMessage(ctx, in.ID, events.ErrorData{
			Code:    events.ErrCodeUnsupportedType,
			Message: "unsupported message type " + string(in.Type),
		})
	}
}

func (h *QueryHandler) query(ctx context.Context, sessionID string, in events.InboundMessage) events.WebSocketMessage {
	var req api.ViewRequest
	if len(in.Data) > 0 && string(in.Data) != "null" {
		if err := json.Unmarshal(in.Data, &req); err != nil {
			return h.errorMessage(ctx, in.ID, events.ErrorData{
				Code:    events.ErrCodeInvalidMessage,
				Message: "query data must be an object with start, end and mission",
			})
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		var apiErr *apperrors.APIError
		details := interface{}(nil)
		if errors.As(err, &apiErr) {
			details = apiErr.Details
		}
		return h.errorMessage(ctx, in.ID, events.ErrorData{
			Code:    events.ErrCodeValidation,
			Message: err.Error(),
			Details: details,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := h.now()
	res, err := h.service.View(ctx, sessionID, req)
	if err != nil {
		return h.errorMessage(ctx, in.ID, errorData(err))
	}

	h.logger.DebugContext(ctx, "query answered",
		slog.String("session_id", sessionID),
		slog.Int("rows", res.Count),
		slog.Duration("duration", h.now().Sub(start)))
	return h.message(ctx, in.ID, events.MessageTypeView, res)
}

// errorData maps a service error to the wire error. A missing session is
// fatal: the client is expected to reconnect to a new one.
func errorData(err error) events.ErrorData {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRange):
		return events.ErrorData{Code: events.ErrCodeInvalidRange, Message: err.Error()}
	case errors.Is(err, &apperrors.AppError{Type: apperrors.ErrTypeValidation}):
		return events.ErrorData{Code: events.ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, &apperrors.AppError{Type: apperrors.ErrTypeNotFound}):
		return events.ErrorData{Code: events.ErrCodeSessionNotFound, Message: "session not found", Fatal: true}
	default:
		return events.ErrorData{Code: events.ErrCodeServerError, Message: "query failed"}
	}
}

func (h *QueryHandler) errorMessage(ctx context.Context, id string, data events.ErrorData) events.WebSocketMessage {
	h.logger.InfoContext(ctx, "query rejected",
		slog.String("code", data.Code),
		slog.String("message", data.Message))
	return h.message(ctx, id, events.MessageTypeError, data)
}

func (h *QueryHandler) message(ctx context.Context, id string, typ events.MessageType, data interface{}) events.WebSocketMessage {
	return events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        id,
			Type:      typ,
			Timestamp: h.now().UTC(),
			TraceID:   infrastructure.GetTraceID(ctx),
		},
		Data: data,
	}
}

func encode(msg events.WebSocketMessage) ([]byte, error) {
	return json.Marshal(msg)
}
