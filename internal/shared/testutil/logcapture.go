package testutil

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log call with its attributes flattened,
// including those added through Logger.With.
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logStore struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogCapture is a slog.Handler that records every call for assertions.
type LogCapture struct {
	store *logStore
	attrs []slog.Attr
	t     *testing.T
}

// NewTestLogger returns a logger whose output is captured by the returned
// LogCapture and echoed through t.Logf when t is not nil.
func NewTestLogger(t *testing.T) (*slog.Logger, *LogCapture) {
	h := &LogCapture{store: &logStore{}, t: t}
	return slog.New(h), h
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Enabled implements slog.Handler; every level is captured.
func (h *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler
func (h *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.store.mu.Lock()
	h.store.records = append(h.store.records, LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	h.store.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler. Children share the parent's records.
func (h *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LogCapture{store: h.store, attrs: merged, t: h.t}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *LogCapture) WithGroup(string) slog.Handler { return h }

// Records returns a copy of the captured records.
func (h *LogCapture) Records() []LogRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	out := make([]LogRecord, len(h.store.records))
	copy(out, h.store.records)
	return out
}

// Find returns the first record whose message contains msg.
func (h *LogCapture) Find(msg string) (LogRecord, bool) {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, msg) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// Count returns the number of captured records at level.
func (h *LogCapture) Count(level slog.Level) int {
	n := 0
	for _, r := range h.Records() {
		if r.Level == level {
			n++
		}
	}
	return n
}

// AssertLogged fails t unless a record at level contains msg, and returns
// the matching record.
func AssertLogged(t *testing.T, h *LogCapture, level slog.Level, msg string) LogRecord {
	t.Helper()
	for _, r := range h.Records() {
		if r.Level == level && strings.Contains(r.Message, msg) {
			return r
		}
	}
	t.Errorf("no %s record containing %q", level, msg)
	for _, r := range h.Records() {
		t.Logf("  [%s] %s %v", r.Level, r.Message, r.Attrs)
	}
	return LogRecord{}
}
