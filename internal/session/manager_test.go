package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/loader"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLoader struct {
	calls     atomic.Int32
	cancelled atomic.Bool
	release   chan struct{}
	table     *loader.Table
	err       error
}

func (f *fakeLoader) Load(ctx context.Context, source string) (*loader.Table, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if ctx.Err() != nil {
		f.cancelled.Store(true)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func sampleTable() *loader.Table {
	return &loader.Table{
		Columns: []string{"mission_acronym", "start_date", "end_date", "mission_isactive"},
		Rows: [][]string{
			{"UNMIK", "1999-06-10", "", "Yes"},
			{"UNOMIG", "1993-08-24", "2009-06-15", "No"},
			{"MINUSMA", "2013-04-25", "2023-12-31", "No"},
		},
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(l TableLoader, opts Options) (*Manager, *clock) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(l, opts, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = c.Now
	return m, c
}

func TestManager_OpenAndGet(t *testing.T) {
	fl := &fakeLoader{table: sampleTable()}
	m, _ := newTestManager(fl, Options{DefaultSource: "https://example.org/pko.csv"})

	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, s.ID(), 36)
	assert.Equal(t, "https://example.org/pko.csv", s.Dataset().Source())
	assert.Equal(t, 3, s.Dataset().Len())
	assert.Equal(t, 3, s.Report().Rows)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	sum := s.Summary()
	assert.Equal(t, 1, sum.Activity.Active)
	assert.Equal(t, 2, sum.Durations.Count)
	assert.Equal(t, "MINUSMA", sum.Durations.Shortest.Acronym)
	assert.Equal(t, 1993, sum.Years[0].Year)
}

func TestManager_SourceUnavailable(t *testing.T) {
	fl := &fakeLoader{err: apperrors.NewSourceUnavailableError("unexpected status 503", nil)}
	m, _ := newTestManager(fl, Options{})

	_, err := m.Open(context.Background(), "https://example.org/down")
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
	assert.Equal(t, 0, m.Len())

	_, err = m.Open(context.Background(), "")
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable), "no source configured")
}

func TestManager_SchemaMismatchIsSourceUnavailable(t *testing.T) {
	fl := &fakeLoader{table: &loader.Table{Columns: []string{"name"}, Rows: [][]string{{"x"}}}}
	m, _ := newTestManager(fl, Options{})

	_, err := m.Open(context.Background(), "file:///tmp/other.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
}

func TestManager_ConcurrentOpensShareFetch(t *testing.T) {
	fl := &fakeLoader{table: sampleTable(), release: make(chan struct{})}
	m, _ := newTestManager(fl, Options{})

	const n = 5
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Open(context.Background(), "src")
			if assert.NoError(t, err) {
				ids <- s.ID()
			}
		}()
	}

	// let every goroutine reach the in-flight load before releasing it
	require.Eventually(t, func() bool { return fl.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(fl.release)
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, n, "each open gets its own session")
	assert.LessOrEqual(t, fl.calls.Load(), int32(n))
	assert.Equal(t, n, m.Len())
}

func TestManager_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	fl := &fakeLoader{table: sampleTable(), release: make(chan struct{})}
	m, _ := newTestManager(fl, Options{LoadTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := m.Open(ctx, "src")
		first <- err
	}()
	require.Eventually(t, func() bool { return fl.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := m.Open(context.Background(), "src")
		second <- err
	}()

	cancel()
	err := <-first
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))

	close(fl.release)
	require.NoError(t, <-second)
	assert.False(t, fl.cancelled.Load(), "the fetch keeps running for the remaining callers")
	assert.Equal(t, 1, m.Len())
}

func TestManager_Capacity(t *testing.T) {
	m, _ := newTestManager(&fakeLoader{table: sampleTable()}, Options{MaxSessions: 1})

	_, err := m.Open(context.Background(), "src")
	require.NoError(t, err)

	_, err = m.Open(context.Background(), "src")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeCapacity, appErr.Type)
}

func TestManager_CloseAndExpire(t *testing.T) {
	m, c := newTestManager(&fakeLoader{table: sampleTable()}, Options{TTL: time.Minute})
	ctx := context.Background()

	a, err := m.Open(ctx, "src")
	require.NoError(t, err)
	b, err := m.Open(ctx, "src")
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, a.ID()))
	_, err = m.Get(a.ID())
	assert.True(t, errors.Is(err, &apperrors.AppError{Type: apperrors.ErrTypeNotFound}))
	assert.Error(t, m.Close(ctx, a.ID()))

	c.Advance(30 * time.Second)
	_, err = m.Get(b.ID())
	require.NoError(t, err, "access refreshes the idle timer")

	c.Advance(45 * time.Second)
	assert.Equal(t, 0, m.Sweep(ctx))

	c.Advance(time.Minute)
	_, err = m.Get(b.ID())
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestManager_SweepAndList(t *testing.T) {
	m, c := newTestManager(&fakeLoader{table: sampleTable()}, Options{TTL: time.Minute})
	ctx := context.Background()

	first, err := m.Open(ctx, "src")
	require.NoError(t, err)
	c.Advance(time.Second)
	second, err := m.Open(ctx, "src")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID(), list[0].ID)
	assert.Equal(t, second.ID(), list[1].ID)
	assert.Equal(t, 3, list[0].Rows)

	c.Advance(2 * time.Minute)
	assert.Equal(t, 2, m.Sweep(ctx))
	assert.Empty(t, m.List())
}

func TestManager_RunStopsWithContext(t *testing.T) {
	m, _ := newTestManager(&fakeLoader{table: sampleTable()}, Options{TTL: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestManager_CloseAll(t *testing.T) {
	m, _ := newTestManager(&fakeLoader{table: sampleTable()}, Options{})
	for i := 0; i < 3; i++ {
		_, err := m.Open(context.Background(), "src")
		require.NoError(t, err)
	}
	m.CloseAll(context.Background())
	assert.Equal(t, 0, m.Len())
}

func TestManager_OnRemove(t *testing.T) {
	m, c := newTestManager(&fakeLoader{table: sampleTable()}, Options{TTL: time.Minute})
	ctx := context.Background()

	var removed []string
	m.OnRemove(func(id, reason string) { removed = append(removed, reason) })

	a, err := m.Open(ctx, "src")
	require.NoError(t, err)
	_, err = m.Open(ctx, "src")
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, a.ID()))
	c.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep(ctx))

	assert.Equal(t, []string{"closed", "expired"}, removed)
}
