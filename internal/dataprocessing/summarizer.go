package dataprocessing

import (
	"fmt"
	"strings"

	"pkoinsight/pkg/contracts/domain"
)

// LatitudePolicy chooses which latitude represents a mission group.
type LatitudePolicy string

const (
	// FirstValid takes the first parseable latitude in view order.
	FirstValid LatitudePolicy = "first_valid"
	// FirstRow takes the latitude of the group's first row, even if missing.
	FirstRow LatitudePolicy = "first_row"
)

// ParseLatitudePolicy maps a config value to a policy. Empty means FirstValid.
func ParseLatitudePolicy(s string) (LatitudePolicy, error) {
	switch LatitudePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FirstValid:
		return FirstValid, nil
	case FirstRow:
		return FirstRow, nil
	}
	return "", fmt.Errorf("unknown latitude policy %q", s)
}

// RatioAxisHeadroom scales the largest ratio into the chart axis maximum.
const RatioAxisHeadroom = 1.2

// LocationSummary is the per-mission chart point.
type LocationSummary struct {
	Acronym       string                `json:"mission_acronym"`
	FirstLatitude domain.Field[float64] `json:"mission_latitude"`
	MeanLongitude domain.Field[float64] `json:"mission_longitude"`
	// Ratio is latitude over mean longitude, a display value only
	Ratio domain.Field[float64] `json:"average_location"`
	Count int                   `json:"count"`
}

// Aggregator groups a view by mission acronym.
type Aggregator struct {
	Latitude LatitudePolicy
}

// NewAggregator returns an Aggregator using policy.
func NewAggregator(policy LatitudePolicy) *Aggregator {
	return &Aggregator{Latitude: policy}
}

type group struct {
	summary  LocationSummary
	seenLat  bool
	lonSum   float64
	lonCount int
}

// Aggregate returns one summary per acronym in order of first occurrence in
// the view.
func (a *Aggregator) Aggregate(view domain.View) []LocationSummary {
	var groups []*group
	byAcronym := make(map[string]*group)

	for _, m := range view.Missions() {
		g, ok := byAcronym[m.Acronym]
		if !ok {
			g = &group{summary: LocationSummary{
				Acronym:       m.Acronym,
				FirstLatitude: domain.Missing[float64]("", domain.ReasonUndefined),
			}}
			byAcronym[m.Acronym] = g
			groups = append(groups, g)
		}
		g.summary.Count++

		switch a.Latitude {
		case FirstRow:
			if !g.seenLat {
				g.summary.FirstLatitude = m.Latitude
				g.seenLat = true
			}
		default:
			if !g.seenLat && m.Latitude.OK() {
				g.summary.FirstLatitude = m.Latitude
				g.seenLat = true
			}
		}

		if lon, ok := m.Longitude.Get(); ok {
			g.lonSum += lon
			g.lonCount++
		}
	}

	out := make([]LocationSummary, 0, len(groups))
	for _, g := range groups {
		s := g.summary
		if g.lonCount > 0 {
			s.MeanLongitude = domain.Present(g.lonSum/float64(g.lonCount), "")
		} else {
			s.MeanLongitude = domain.Missing[float64]("", domain.ReasonUndefined)
		}
		s.Ratio = Ratio(s.FirstLatitude, s.MeanLongitude)
		out = append(out, s)
	}
	return out
}

// Ratio divides latitude by longitude. It is missing when either side is
// missing, and with ReasonDivisionByZero when longitude is 0.
func Ratio(lat, lon domain.Field[float64]) domain.Field[float64] {
	la, okLat := lat.Get()
	lo, okLon := lon.Get()
	if !okLat || !okLon {
		return domain.Missing[float64]("", domain.ReasonUndefined)
	}
	if lo == 0 {
		return domain.Missing[float64]("", domain.ReasonDivisionByZero)
	}
	return domain.Present(la/lo, "")
}

// Axis is a chart axis domain.
type Axis struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Available bool    `json:"available"`
}

// RatioAxis returns [0, max(ratio) * RatioAxisHeadroom] over summaries.
// It is unavailable when no summary has a ratio.
func RatioAxis(summaries []LocationSummary) Axis {
	var axis Axis
	for _, s := range summaries {
		r, ok := s.Ratio.Get()
		if !ok {
			continue
		}
		if !axis.Available || r > axis.Max {
			axis.Max = r
			axis.Available = true
		}
	}
	axis.Max *= RatioAxisHeadroom
	return axis
}
