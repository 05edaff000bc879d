package websocket

import (
	"context"
	"net"
	"time"

	"pkoinsight/internal/services"
	api "pkoinsight/pkg/contracts/api/v1"
)

// Connection is the subset of *websocket.Conn the client pumps use.
// It exists so tests can drive a Client without a network.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() net.Addr
}

// ViewService answers range queries for a session.
// *services.DashboardService satisfies it.
type ViewService interface {
	Session(ctx context.Context, id string) (*services.SessionResult, error)
	View(ctx context.Context, id string, req api.ViewRequest) (*services.ViewResult, error)
}
