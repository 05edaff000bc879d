package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"pkoinsight/internal/dataprocessing"
	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
	"pkoinsight/internal/loader"
	"pkoinsight/pkg/contracts/domain"
)

// TableLoader fetches raw tables.
type TableLoader interface {
	Load(ctx context.Context, source string) (*loader.Table, error)
}

// Options configures a Manager.
type Options struct {
	DefaultSource string
	TTL           time.Duration
	MaxSessions   int
	// LoadTimeout bounds a shared fetch, which outlives the request that
	// started it
	LoadTimeout time.Duration
}

// Manager opens, tracks and expires sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	loads      singleflight.Group
	loader     TableLoader
	normalizer *dataprocessing.Normalizer
	metrics    *infrastructure.PipelineMetrics
	logger     *slog.Logger
	opts       Options
	now        func() time.Time

	onRemove []func(id, reason string)
}

type loaded struct {
	dataset *domain.Dataset
	report  *dataprocessing.Report
}

// NewManager creates a Manager. metrics may be nil.
func NewManager(l TableLoader, opts Options, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "session_manager"))
	return &Manager{
		sessions:   make(map[string]*Session),
		loader:     l,
		normalizer: dataprocessing.NewNormalizer(logger),
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Open loads source (or the default source when empty) and registers a new
// session for it. Concurrent opens of the same source share one fetch and
// its dataset. The fetch ignores the cancellation of any single caller;
// a caller whose ctx ends stops waiting for it.
func (m *Manager) Open(ctx context.Context, source string) (*Session, error) {
	if source == "" {
		source = m.opts.DefaultSource
	}
	if source == "" {
		return nil, apperrors.NewSourceUnavailableError("no source configured", nil)
	}
	if m.atCapacity() {
		return nil, apperrors.NewCapacityError("session limit reached").
			WithContext("max_sessions", m.opts.MaxSessions)
	}

	ch := m.loads.DoChan(source, func() (interface{}, error) {
		loadCtx, cancel := m.loadContext(ctx)
		defer cancel()
		return m.load(loadCtx, source)
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, apperrors.NewSourceUnavailableError("load abandoned", ctx.Err()).
			WithContext("source", source)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	res, shared := r.Val.(*loaded), r.Shared

	now := m.now().UTC()
	s := newSession(uuid.NewString(), now, res.dataset, res.report)

	m.mu.Lock()
	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		return nil, apperrors.NewCapacityError("session limit reached").
			WithContext("max_sessions", m.opts.MaxSessions)
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.metrics.SessionDelta(ctx, 1)
	m.logger.InfoContext(ctx, "session opened",
		slog.String("session_id", s.id),
		slog.String("source", source),
		slog.Int("rows", res.dataset.Len()),
		slog.Bool("shared_fetch", shared))
	return s, nil
}

// loadContext keeps the values of ctx (trace ids) but not its deadline or
// cancellation.
func (m *Manager) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if m.opts.LoadTimeout > 0 {
		return context.WithTimeout(detached, m.opts.LoadTimeout)
	}
	return context.WithCancel(detached)
}

func (m *Manager) load(ctx context.Context, source string) (*loaded, error) {
	start := m.now()

	table, err := m.loader.Load(ctx, source)
	if err != nil {
		m.metrics.RecordLoad(ctx, m.now().Sub(start), 0, err)
		return nil, err
	}

	ds, report, err := m.normalizer.Normalize(ctx, source, table)
	if err != nil {
		if errors.Is(err, dataprocessing.ErrSchemaMismatch) {
			err = apperrors.NewSourceUnavailableError("dataset has an unexpected layout", err).
				WithContext("source", source)
		}
		m.metrics.RecordLoad(ctx, m.now().Sub(start), 0, err)
		return nil, err
	}

	m.metrics.RecordLoad(ctx, m.now().Sub(start), ds.Len(), nil)
	for column, n := range report.Unparseable {
		m.metrics.RecordUnparseable(ctx, column, n)
	}
	return &loaded{dataset: ds, report: report}, nil
}

func (m *Manager) atCapacity() bool {
	if m.opts.MaxSessions <= 0 {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) >= m.opts.MaxSessions
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	now := m.now()

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("session").WithContext("session_id", id)
	}
	if m.expired(s, now) {
		m.remove(context.Background(), id, "expired")
		return nil, apperrors.NewNotFoundError("session").WithContext("session_id", id)
	}

	s.touch(now)
	return s, nil
}

// Close removes a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	if !m.remove(ctx, id, "closed") {
		return apperrors.NewNotFoundError("session").WithContext("session_id", id)
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, id, reason string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		m.metrics.SessionDelta(ctx, -1)
		m.logger.InfoContext(ctx, "session removed",
			slog.String("session_id", id),
			slog.String("reason", reason))
		m.mu.RLock()
		hooks := m.onRemove
		m.mu.RUnlock()
		for _, fn := range hooks {
			fn(id, reason)
		}
	}
	return ok
}

// OnRemove registers fn to run after a session is closed or expires.
// reason is "closed" or "expired".
func (m *Manager) OnRemove(fn func(id, reason string)) {
	m.mu.Lock()
	m.onRemove = append(m.onRemove, fn)
	m.mu.Unlock()
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.opts.TTL > 0 && now.Sub(s.LastAccess()) > m.opts.TTL
}

// List describes every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if m.expired(s, now) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if m.remove(ctx, id, "expired") {
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ctx); n > 0 {
				m.logger.DebugContext(ctx, "expired sessions swept", slog.Int("count", n))
			}
		}
	}
}

// CloseAll removes every session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if n > 0 {
		m.metrics.SessionDelta(ctx, -int64(n))
	}
}
