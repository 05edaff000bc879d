package dataprocessing

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"pkoinsight/pkg/contracts/domain"
)

// NotAvailable is how an undefined statistic is displayed.
const NotAvailable = "not available"

// Stat is a scalar statistic that may be undefined, for example the mean of
// an empty set.
type Stat struct {
	Value     float64
	Available bool
}

func available(v float64) Stat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Stat{}
	}
	return Stat{Value: v, Available: true}
}

// Format renders the value with the given precision, or NotAvailable.
func (s Stat) Format(precision int) string {
	if !s.Available {
		return NotAvailable
	}
	return fmt.Sprintf("%.*f", precision, s.Value)
}

// MarshalJSON encodes the value, or null when unavailable.
func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Available {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// MissionRef points at the mission that produced a statistic.
type MissionRef struct {
	Index   int    `json:"index"`
	Acronym string `json:"mission_acronym"`
	Name    string `json:"mission_name"`
	Days    int    `json:"days"`
}

// DurationSummary holds statistics over missions with a defined duration.
type DurationSummary struct {
	Count    int         `json:"count"`
	Mean     Stat        `json:"mean"`
	Median   Stat        `json:"median"`
	Longest  *MissionRef `json:"longest"`
	Shortest *MissionRef `json:"shortest"`
}

// SummarizeDurations computes duration statistics. Missions without a
// duration are skipped. Longest and Shortest go to the first mission in
// input order when several share the extreme value.
func SummarizeDurations(missions []domain.Mission) DurationSummary {
	var (
		summary DurationSummary
		values  []float64
		sum     float64
	)
	for _, m := range missions {
		d, ok := m.Duration.Get()
		if !ok {
			continue
		}
		values = append(values, float64(d))
		sum += float64(d)

		ref := &MissionRef{Index: m.Index, Acronym: m.Acronym, Name: m.Name, Days: d}
		if summary.Longest == nil || d > summary.Longest.Days {
			summary.Longest = ref
		}
		if summary.Shortest == nil || d < summary.Shortest.Days {
			summary.Shortest = ref
		}
	}

	summary.Count = len(values)
	if summary.Count == 0 {
		return summary
	}
	summary.Mean = available(sum / float64(summary.Count))
	summary.Median = available(median(values))
	return summary
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// CategoryField names a text column that can be counted.
type CategoryField string

const (
	CategoryLocation       CategoryField = domain.ColumnLocation
	CategoryLeadDepartment CategoryField = domain.ColumnLeadDepartment
	CategoryAcronym        CategoryField = domain.ColumnAcronym
	CategoryActive         CategoryField = domain.ColumnIsActive
)

// CategoryFields lists the countable columns.
var CategoryFields = []CategoryField{CategoryLocation, CategoryLeadDepartment, CategoryAcronym, CategoryActive}

// ParseCategoryField accepts a column name, or the short forms "location",
// "department", "acronym" and "active".
func ParseCategoryField(s string) (CategoryField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CategoryLocation), "location":
		return CategoryLocation, nil
	case string(CategoryLeadDepartment), "department":
		return CategoryLeadDepartment, nil
	case string(CategoryAcronym), "acronym", "mission":
		return CategoryAcronym, nil
	case string(CategoryActive), "active", "isactive":
		return CategoryActive, nil
	}
	return "", fmt.Errorf("unknown category field %q", s)
}

func (f CategoryField) value(m domain.Mission) string {
	switch f {
	case CategoryLocation:
		return m.Location
	case CategoryLeadDepartment:
		return m.LeadDepartment
	case CategoryAcronym:
		return m.Acronym
	case CategoryActive:
		return m.IsActive
	}
	return ""
}

// CategoryCount is one row of a category count table.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CountBy counts missions per value of field, by descending count with ties
// in first-encountered order. Empty values are not counted. A positive limit
// keeps only the first limit rows.
func CountBy(missions []domain.Mission, field CategoryField, limit int) []CategoryCount {
	counts := []CategoryCount{}
	pos := make(map[string]int)
	for _, m := range missions {
		v := field.value(m)
		if v == "" {
			continue
		}
		if i, ok := pos[v]; ok {
			counts[i].Count++
			continue
		}
		pos[v] = len(counts)
		counts = append(counts, CategoryCount{Value: v, Count: 1})
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// YearCount is the number of missions started in Year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// YearHistogram counts missions per start year, ascending. Missions with no
// start date are skipped.
func YearHistogram(missions []domain.Mission) []YearCount {
	byYear := make(map[int]int)
	for _, m := range missions {
		if y, ok := m.Year.Get(); ok {
			byYear[y]++
		}
	}

	out := make([]YearCount, 0, len(byYear))
	for y, n := range byYear {
		out = append(out, YearCount{Year: y, Count: n})
	}
	slices.SortFunc(out, func(a, b YearCount) int { return a.Year - b.Year })
	return out
}

// ActivitySummary splits missions by their active flag.
type ActivitySummary struct {
	Total       int  `json:"total"`
	Active      int  `json:"active"`
	Inactive    int  `json:"inactive"`
	ActiveShare Stat `json:"active_share"`
}

// Activity counts active and inactive missions. Inactive is everything not
// flagged active.
func Activity(missions []domain.Mission) ActivitySummary {
	s := ActivitySummary{Total: len(missions)}
	for _, m := range missions {
		if m.Active() {
			s.Active++
		}
	}
	s.Inactive = s.Total - s.Active
	if s.Total > 0 {
		s.ActiveShare = available(float64(s.Active) / float64(s.Total))
	}
	return s
}

// DurationBin is a half-open range [Lower, Upper) of days.
type DurationBin struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
	Count int `json:"count"`
}

// DefaultHistogramBins matches the dashboard's duration chart.
const DefaultHistogramBins = 20

// DurationHistogram buckets defined durations into at most maxBins
// equal-width bins of whole days.
func DurationHistogram(missions []domain.Mission, maxBins int) []DurationBin {
	if maxBins <= 0 {
		maxBins = DefaultHistogramBins
	}

	var values []int
	for _, m := range missions {
		if d, ok := m.Duration.Get(); ok {
			values = append(values, d)
		}
	}
	if len(values) == 0 {
		return []DurationBin{}
	}

	lo, hi := slices.Min(values), slices.Max(values)
	span := hi - lo + 1
	width := (span + maxBins - 1) / maxBins
	if width < 1 {
		width = 1
	}
	n := (span + width - 1) / width

	bins := make([]DurationBin, n)
	for i := range bins {
		bins[i].Lower = lo + i*width
		bins[i].Upper = lo + (i+1)*width
	}
	for _, v := range values {
		bins[(v-lo)/width].Count++
	}
	return bins
}

// Bounds is the date range covered by a set of missions.
type Bounds struct {
	Start domain.Field[time.Time] `json:"start"`
	End   domain.Field[time.Time] `json:"end"`
}

// DateBounds returns the earliest start date and the latest end date. Each
// side is missing when no mission has that date.
func DateBounds(missions []domain.Mission) Bounds {
	b := Bounds{
		Start: domain.Missing[time.Time]("", domain.ReasonUndefined),
		End:   domain.Missing[time.Time]("", domain.ReasonUndefined),
	}
	for _, m := range missions {
		if s, ok := m.StartDate.Get(); ok {
			if cur, set := b.Start.Get(); !set || s.Before(cur) {
				b.Start = domain.Present(s, "")
			}
		}
		if e, ok := m.EndDate.Get(); ok {
			if cur, set := b.End.Get(); !set || e.After(cur) {
				b.End = domain.Present(e, "")
			}
		}
	}
	return b
}
