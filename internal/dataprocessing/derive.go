package dataprocessing

import (
	"math"
	"time"

	"pkoinsight/pkg/contracts/domain"
)

const day = 24 * time.Hour

// Duration returns the whole days from start to end, floored. It is missing
// with ReasonUndefined unless both dates are present. A negative result is
// kept so inverted source dates stay visible.
func Duration(start, end domain.Field[time.Time]) domain.Field[int] {
	s, okS := start.Get()
	e, okE := end.Get()
	if !okS || !okE {
		return domain.Missing[int]("", domain.ReasonUndefined)
	}
	days := int(math.Floor(float64(e.Sub(s)) / float64(day)))
	return domain.Present(days, "")
}

// Year returns the calendar year of start.
func Year(start domain.Field[time.Time]) domain.Field[int] {
	s, ok := start.Get()
	if !ok {
		return domain.Missing[int]("", domain.ReasonUndefined)
	}
	return domain.Present(s.Year(), "")
}

// Derive fills the derived fields of m from its dates.
func Derive(m domain.Mission) domain.Mission {
	m.Duration = Duration(m.StartDate, m.EndDate)
	m.Year = Year(m.StartDate)
	return m
}
