package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
	mw "pkoinsight/internal/middleware"
	"pkoinsight/internal/services"
	"pkoinsight/internal/session"
	"pkoinsight/internal/shared/testutil"
	api "pkoinsight/pkg/contracts/api/v1"
	"pkoinsight/pkg/contracts/events"
)

type stubViews struct {
	view    *services.ViewResult
	err     error
	lastReq api.ViewRequest
	calls   int
}

func (s *stubViews) Session(ctx context.Context, id string) (*services.SessionResult, error) {
	if id != "s1" {
		return nil, apperrors.NewNotFoundError("session").WithContext("session_id", id)
	}
	return &services.SessionResult{Session: session.Info{ID: id, Rows: 3}}, nil
}

func (s *stubViews) View(ctx context.Context, id string, req api.ViewRequest) (*services.ViewResult, error) {
	s.calls++
	s.lastReq = req
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("query ran without a deadline")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

func newTestQueryHandler(svc ViewService) *QueryHandler {
	h := NewQueryHandler(svc, mw.NewValidator(testutil.DiscardLogger()), time.Second, testutil.DiscardLogger())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestQueryHandler_Handle(t *testing.T) {
	view := &services.ViewResult{Count: 2, ChartTitle: "Missions 2000-2010"}

	tests := []struct {
		name      string
		raw       string
		err       error
		wantType  events.MessageType
		wantCode  string
		wantFatal bool
		wantCalls int
	}{
		{"ping", `{"id":"1","type":"ping"}`, nil, events.MessageTypePong, "", false, 0},
		{"query", `{"id":"2","type":"query","data":{"start":"2000-01-01","end":"2010-12-31","mission":"UNMIK"}}`, nil, events.MessageTypeView, "", false, 1},
		{"query without data uses defaults", `{"id":"3","type":"query"}`, nil, events.MessageTypeView, "", false, 1},
		{"not json", `{{`, nil, events.MessageTypeError, events.ErrCodeInvalidMessage, false, 0},
		{"data not an object", `{"type":"query","data":[1,2]}`, nil, events.MessageTypeError, events.ErrCodeInvalidMessage, false, 0},
		{"bad date", `{"type":"query","data":{"start":"01/02/2000"}}`, nil, events.MessageTypeError, events.ErrCodeValidation, false, 0},
		{"unsupported", `{"type":"subscribe"}`, nil, events.MessageTypeError, events.ErrCodeUnsupportedType, false, 0},
		{"invalid range", `{"type":"query","data":{"start":"2010-01-01","end":"2000-01-01"}}`,
			apperrors.NewInvalidRangeError("start date is after end date"), events.MessageTypeError, events.ErrCodeInvalidRange, false, 1},
		{"session gone", `{"type":"query"}`,
			apperrors.NewNotFoundError("session"), events.MessageTypeError, events.ErrCodeSessionNotFound, true, 1},
		{"internal failure", `{"type":"query"}`,
			errors.New("boom"), events.MessageTypeError, events.ErrCodeServerError, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubViews{view: view, err: tt.err}
			msg := newTestQueryHandler(svc).Handle(context.Background(), "s1", []byte(tt.raw))

			assert.Equal(t, tt.wantType, msg.Type)
			assert.Equal(t, tt.wantCalls, svc.calls)
			assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), msg.Timestamp)

			if tt.wantCode == "" {
				return
			}
			data, ok := msg.Data.(events.ErrorData)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, data.Code)
			assert.Equal(t, tt.wantFatal, data.Fatal)
		})
	}
}

func TestQueryHandler_EchoesIDAndRequest(t *testing.T) {
	svc := &stubViews{view: &services.ViewResult{Count: 1}}
	msg := newTestQueryHandler(svc).Handle(context.Background(), "s1",
		[]byte(`{"id":"q-7","type":"query","data":{"start":"1999-01-01","end":"2001-01-01","mission":"All"}}`))

	assert.Equal(t, "q-7", msg.ID)
	assert.NotEmpty(t, msg.TraceID)
	assert.Same(t, svc.view, msg.Data)
	assert.Equal(t, api.ViewRequest{Start: "1999-01-01", End: "2001-01-01", Mission: "All"}, svc.lastReq)
}

func TestQueryHandler_KeepsConnectionTraceID(t *testing.T) {
	h := newTestQueryHandler(&stubViews{})
	ctx := infrastructure.WithTraceID(context.Background(), "conn-trace")

	assert.Equal(t, "conn-trace", h.Handle(ctx, "s1", []byte(`{"type":"ping"}`)).TraceID)
	assert.Equal(t, "conn-trace", h.Handle(ctx, "s1", []byte(`not json`)).TraceID)
}

func TestQueryHandler_ValidationDetails(t *testing.T) {
	svc := &stubViews{}
	msg := newTestQueryHandler(svc).Handle(context.Background(), "s1",
		[]byte(`{"type":"query","data":{"mission":"<script>"}}`))

	data, ok := msg.Data.(events.ErrorData)
	require.True(t, ok)
	assert.Equal(t, events.ErrCodeValidation, data.Code)
	assert.NotNil(t, data.Details)
}
