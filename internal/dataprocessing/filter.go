package dataprocessing

import (
	"fmt"
	"time"

	apperrors "pkoinsight/internal/errors"
	"pkoinsight/pkg/contracts/domain"
)

// Window is a query interval reduced to calendar days, inclusive on both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates a query interval. Start after End is ErrInvalidRange;
// a single-day window is valid.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: calendarDay(start), End: calendarDay(end)}
	if w.Start.After(w.End) {
		return Window{}, apperrors.NewInvalidRangeError(
			fmt.Sprintf("start %s is after end %s", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly)),
		)
	}
	return w, nil
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Overlaps reports whether a mission running from start to end is active
// within w. A missing end is open-ended. A missing start can only match by
// its end date falling inside w.
func (w Window) Overlaps(start, end domain.Field[time.Time]) bool {
	s, hasStart := start.Get()
	e, hasEnd := end.Get()
	if hasStart {
		s = calendarDay(s)
	}
	if hasEnd {
		e = calendarDay(e)
	}

	switch {
	case !hasStart && !hasEnd:
		return false
	case !hasStart:
		return w.contains(e)
	case !hasEnd:
		// ongoing: the interval extends past any query end
		return !s.After(w.End)
	}

	return (!s.After(w.End) && !e.Before(w.Start)) ||
		w.contains(s) ||
		w.contains(e) ||
		(!s.After(w.Start) && !e.Before(w.End))
}

// Filter selects the missions of ds active within [q.Start, q.End] and,
// unless q asks for all missions, with acronym q.Mission. The view keeps
// dataset order and never copies or changes ds.
func Filter(ds *domain.Dataset, q domain.Query) (domain.View, error) {
	w, err := NewWindow(q.Start, q.End)
	if err != nil {
		return domain.View{}, err
	}

	indices := make([]int, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		m := ds.At(i)
		if !q.AllCategories() && m.Acronym != q.Mission {
			continue
		}
		if w.Overlaps(m.StartDate, m.EndDate) {
			indices = append(indices, i)
		}
	}
	return domain.NewView(ds, indices), nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
