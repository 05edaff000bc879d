package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	apierrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
	api "pkoinsight/pkg/contracts/api/v1"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	var seen, trace string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
		trace = infrastructure.GetTraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, trace)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "client-42", seen)
}

func TestRecoverer(t *testing.T) {
	h := RequestID(Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apierrors.TypeInternal, body["type"])
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body["trace_id"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, discardLogger())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler())

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"), "burst exhausted")
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"), "clients are limited separately")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1003"), "token refilled")
}

func TestTimeout(t *testing.T) {
	var deadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)

	req := httptest.NewRequest(http.MethodGet, "/ws/sessions/x", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, deadline, "websocket upgrades keep the parent context")
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://dash.example.org"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://dash.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSecureHeaders(t *testing.T) {
	h := DefaultSecureHeaders().Handler(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "plain http")

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestOTelMiddleware_RecordsRoute(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	metrics, err := infrastructure.NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(NewOTelMiddleware(nil, metrics, discardLogger()).Handler)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			require.Len(t, sum.DataPoints, 1)
			route, _ := sum.DataPoints[0].Attributes.Value("route")
			assert.Equal(t, "/api/sessions/{id}", route.AsString())
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidator_Struct(t *testing.T) {
	v := NewValidator(discardLogger())

	tests := []struct {
		name   string
		in     interface{}
		fields []string
	}{
		{"valid view", &api.ViewRequest{Start: "1990-01-01", End: "2000-12-31", Mission: "All"}, nil},
		{"empty view", &api.ViewRequest{}, nil},
		{"bad date", &api.ViewRequest{Start: "01/02/1990"}, []string{"start"}},
		{"bad mission", &api.ViewRequest{Mission: "<script>"}, []string{"mission"}},
		{"counts field", &api.CountsRequest{Field: "budget"}, []string{"field"}},
		{"counts column name", &api.CountsRequest{Field: "mission_location"}, nil},
		{"counts mission alias", &api.CountsRequest{Field: "mission"}, nil},
		{"counts isactive alias", &api.CountsRequest{Field: "isactive"}, nil},
		{"counts mixed case", &api.CountsRequest{Field: "Lead_Department"}, nil},
		{"histogram bins", &api.HistogramRequest{Bins: 500}, []string{"bins"}},
		{"export format", &api.ExportRequest{Format: "pdf", ViewRequest: api.ViewRequest{End: "x"}}, []string{"end", "format"}},
		{"ftp source", &api.OpenSessionRequest{Source: "ftp://example.org/pko.csv"}, []string{"source"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var apiErr *apierrors.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details := apiErr.Details.(apierrors.ValidationErrors)
			var got []string
			for _, e := range details.Errors {
				got = append(got, e.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidator_DecodeJSON(t *testing.T) {
	v := NewValidator(discardLogger())

	var req api.OpenSessionRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"source":"https://example.org/pko.csv"}`))
	require.NoError(t, v.DecodeJSON(r, &req))
	assert.Equal(t, "https://example.org/pko.csv", req.Source)

	req = api.OpenSessionRequest{}
	r = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.NoError(t, v.DecodeJSON(r, &req), "empty body uses defaults")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"source":`))
	var apiErr *apierrors.APIError
	require.True(t, errors.As(v.DecodeJSON(r, &req), &apiErr))
	assert.Equal(t, "INVALID_JSON", apiErr.ErrorCode)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"x"}`))
	require.True(t, errors.As(v.DecodeJSON(r, &req), &apiErr), "unknown fields are rejected")
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator(apierrors.NewErrorHandler(discardLogger(), false), "application/json")(okHandler())

	post := func(ct string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, post("application/json; charset=utf-8"))
	assert.Equal(t, http.StatusUnsupportedMediaType, post("text/plain"))
	assert.Equal(t, http.StatusUnsupportedMediaType, post(""))
}
