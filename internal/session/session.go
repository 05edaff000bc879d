package session

import (
	"sync"
	"sync/atomic"
	"time"

	"pkoinsight/internal/dataprocessing"
	"pkoinsight/pkg/contracts/domain"
)

// Summary holds the statistics of the full dataset.
type Summary struct {
	Activity  dataprocessing.ActivitySummary `json:"activity"`
	Durations dataprocessing.DurationSummary `json:"durations"`
	Bounds    dataprocessing.Bounds          `json:"bounds"`
	Years     []dataprocessing.YearCount     `json:"years"`
}

// Session is one loaded dataset and everything derived from it.
type Session struct {
	id        string
	createdAt time.Time
	dataset   *domain.Dataset
	report    *dataprocessing.Report

	// unix nanos of the last access
	lastAccess atomic.Int64

	summaryOnce sync.Once
	summary     Summary
}

func newSession(id string, now time.Time, ds *domain.Dataset, report *dataprocessing.Report) *Session {
	s := &Session{
		id:        id,
		createdAt: now,
		dataset:   ds,
		report:    report,
	}
	s.lastAccess.Store(now.UnixNano())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Dataset returns the session's dataset. It must not be modified.
func (s *Session) Dataset() *domain.Dataset { return s.dataset }

// Report returns the normalization report of the dataset.
func (s *Session) Report() *dataprocessing.Report { return s.report }

// LastAccess returns the time of the most recent lookup.
func (s *Session) LastAccess() time.Time {
	return time.Unix(0, s.lastAccess.Load()).UTC()
}

func (s *Session) touch(now time.Time) {
	s.lastAccess.Store(now.UnixNano())
}

// Summary returns the full-dataset statistics, computing them on first use.
func (s *Session) Summary() Summary {
	s.summaryOnce.Do(func() {
		missions := s.dataset.Missions()
		s.summary = Summary{
			Activity:  dataprocessing.Activity(missions),
			Durations: dataprocessing.SummarizeDurations(missions),
			Bounds:    dataprocessing.DateBounds(missions),
			Years:     dataprocessing.YearHistogram(missions),
		}
	})
	return s.summary
}

// Info is the public description of a session.
type Info struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	LoadedAt   time.Time `json:"loaded_at"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// Info describes the session.
func (s *Session) Info() Info {
	return Info{
		ID:         s.id,
		Source:     s.dataset.Source(),
		Rows:       s.dataset.Len(),
		Columns:    s.dataset.Columns(),
		LoadedAt:   s.dataset.LoadedAt(),
		CreatedAt:  s.createdAt,
		LastAccess: s.LastAccess(),
	}
}
