package domain

import (
	"slices"
	"strings"
	"time"
)

// Canonical column names of the peacekeeping operations dataset.
const (
	ColumnAcronym        = "mission_acronym"
	ColumnName           = "mission_name"
	ColumnStartDate      = "start_date"
	ColumnEndDate        = "end_date"
	ColumnLastUpdate     = "last_update"
	ColumnLatitude       = "mission_latitude"
	ColumnLongitude      = "mission_longitude"
	ColumnLocation       = "mission_location"
	ColumnLeadDepartment = "lead_department"
	ColumnIsActive       = "mission_isactive"
)

// ActiveFlag is the value of mission_isactive for running missions.
const ActiveFlag = "Yes"

// Mission is one normalized row of the dataset.
//
// Text fields are whitespace-trimmed. Dates and coordinates carry their own
// missing markers; Duration and Year are derived once at normalization time.
type Mission struct {
	// Index is the zero-based position of the row in source order
	Index int `json:"index"`

	Acronym        string `json:"mission_acronym"`
	Name           string `json:"mission_name"`
	Location       string `json:"mission_location"`
	LeadDepartment string `json:"lead_department"`
	IsActive       string `json:"mission_isactive"`

	StartDate  Field[time.Time] `json:"start_date"`
	EndDate    Field[time.Time] `json:"end_date"`
	LastUpdate Field[time.Time] `json:"last_update"`

	Latitude  Field[float64] `json:"mission_latitude"`
	Longitude Field[float64] `json:"mission_longitude"`

	// Duration is whole days between start and end date
	Duration Field[int] `json:"mission_duration"`
	// Year is the calendar year of StartDate
	Year Field[int] `json:"year"`

	// Cells holds the trimmed source cells aligned with Dataset.Columns
	Cells []string `json:"-"`
}

// Active reports whether the mission is flagged as running.
func (m Mission) Active() bool {
	return strings.EqualFold(m.IsActive, ActiveFlag)
}

// Ongoing reports whether the mission has no end date.
func (m Mission) Ongoing() bool {
	return !m.EndDate.OK()
}

func (m Mission) clone() Mission {
	m.Cells = slices.Clone(m.Cells)
	return m
}

// Dataset is the immutable, normalized table loaded for one session.
type Dataset struct {
	source   string
	loadedAt time.Time
	columns  []string
	missions []Mission
}

// NewDataset copies its inputs so later changes by the caller can not leak in.
func NewDataset(source string, loadedAt time.Time, columns []string, missions []Mission) *Dataset {
	ms := make([]Mission, len(missions))
	for i, m := range missions {
		ms[i] = m.clone()
	}
	return &Dataset{
		source:   source,
		loadedAt: loadedAt,
		columns:  slices.Clone(columns),
		missions: ms,
	}
}

// Source returns the location the dataset was loaded from.
func (d *Dataset) Source() string { return d.source }

// LoadedAt returns the load timestamp.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Len returns the number of missions.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.missions)
}

// Columns returns the source header in source order.
func (d *Dataset) Columns() []string {
	return slices.Clone(d.columns)
}

// At returns a copy of the mission at position i.
func (d *Dataset) At(i int) Mission {
	return d.missions[i].clone()
}

// Missions returns a copy of every mission in source order.
func (d *Dataset) Missions() []Mission {
	out := make([]Mission, len(d.missions))
	for i, m := range d.missions {
		out[i] = m.clone()
	}
	return out
}

// Find returns the first mission with the given acronym.
func (d *Dataset) Find(acronym string) (Mission, bool) {
	for _, m := range d.missions {
		if m.Acronym == acronym {
			return m.clone(), true
		}
	}
	return Mission{}, false
}

// Acronyms returns distinct acronyms in first-occurrence order.
func (d *Dataset) Acronyms() []string {
	seen := make(map[string]struct{}, len(d.missions))
	out := make([]string, 0, len(d.missions))
	for _, m := range d.missions {
		if _, ok := seen[m.Acronym]; ok {
			continue
		}
		seen[m.Acronym] = struct{}{}
		out = append(out, m.Acronym)
	}
	return out
}
