package services

import (
	"fmt"
	"time"

	"pkoinsight/internal/dataprocessing"
	"pkoinsight/pkg/contracts/domain"
)

// OngoingLabel is shown instead of an end date for missions still running.
const OngoingLabel = "Ongoing"

const daysPerYear = 365

// DurationDisplay holds the duration statistics as display strings.
type DurationDisplay struct {
	Average  string `json:"average"`
	Median   string `json:"median"`
	Longest  string `json:"longest"`
	Shortest string `json:"shortest"`
}

// OverviewDisplay holds the overview counters as display strings.
type OverviewDisplay struct {
	TotalMissions    string          `json:"total_missions"`
	ActiveMissions   string          `json:"active_missions"`
	InactiveMissions string          `json:"inactive_missions"`
	ActiveShare      string          `json:"active_share"`
	Durations        DurationDisplay `json:"durations"`
}

// formatDays renders "123.45 days (0.34 years)".
func formatDays(s dataprocessing.Stat) string {
	if !s.Available {
		return dataprocessing.NotAvailable
	}
	return fmt.Sprintf("%.2f days (%.2f years)", s.Value, s.Value/daysPerYear)
}

// formatRef renders "UNOMIG (5774 days)".
func formatRef(ref *dataprocessing.MissionRef) string {
	if ref == nil {
		return dataprocessing.NotAvailable
	}
	return fmt.Sprintf("%s (%d days)", ref.Acronym, ref.Days)
}

func formatShare(s dataprocessing.Stat) string {
	if !s.Available {
		return dataprocessing.NotAvailable
	}
	return fmt.Sprintf("%.2f%%", s.Value*100)
}

func durationDisplay(d dataprocessing.DurationSummary) DurationDisplay {
	return DurationDisplay{
		Average:  formatDays(d.Mean),
		Median:   formatDays(d.Median),
		Longest:  formatRef(d.Longest),
		Shortest: formatRef(d.Shortest),
	}
}

func overviewDisplay(a dataprocessing.ActivitySummary, d dataprocessing.DurationSummary) OverviewDisplay {
	return OverviewDisplay{
		TotalMissions:    fmt.Sprint(a.Total),
		ActiveMissions:   fmt.Sprint(a.Active),
		InactiveMissions: fmt.Sprint(a.Inactive),
		ActiveShare:      formatShare(a.ActiveShare),
		Durations:        durationDisplay(d),
	}
}

// insights builds the narrative lines of the overview. Lines whose numbers
// are not available are left out.
func insights(a dataprocessing.ActivitySummary, d dataprocessing.DurationSummary) []string {
	var lines []string
	if a.ActiveShare.Available {
		lines = append(lines, fmt.Sprintf(
			"Mission Activity: Out of %d total missions, %d are currently active, representing %s of all missions.",
			a.Total, a.Active, formatShare(a.ActiveShare)))
	}
	if d.Mean.Available && d.Median.Available {
		lines = append(lines, fmt.Sprintf(
			"Mission Duration: The average mission duration is approximately %.2f years, with a median of %.2f years.",
			d.Mean.Value/daysPerYear, d.Median.Value/daysPerYear))
	}
	if d.Longest != nil && d.Shortest != nil {
		lines = append(lines, fmt.Sprintf(
			"Duration Range: Missions range from %d days (%s) to %d days (%s).",
			d.Shortest.Days, d.Shortest.Acronym, d.Longest.Days, d.Longest.Acronym))
	}
	return lines
}

// MissionDisplay holds one mission's details as display strings.
type MissionDisplay struct {
	Name           string `json:"mission_name"`
	Location       string `json:"mission_location"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Duration       string `json:"duration"`
	LeadDepartment string `json:"lead_department"`
}

func missionDisplay(m domain.Mission) MissionDisplay {
	d := MissionDisplay{
		Name:           m.Name,
		Location:       m.Location,
		StartDate:      dataprocessing.NotAvailable,
		EndDate:        OngoingLabel,
		Duration:       dataprocessing.NotAvailable,
		LeadDepartment: m.LeadDepartment,
	}
	if s, ok := m.StartDate.Get(); ok {
		d.StartDate = s.Format(time.DateOnly)
	}
	if e, ok := m.EndDate.Get(); ok {
		d.EndDate = e.Format(time.DateOnly)
	} else if m.EndDate.Reason == domain.ReasonUnparseable {
		d.EndDate = dataprocessing.NotAvailable
	}
	if n, ok := m.Duration.Get(); ok {
		d.Duration = fmt.Sprintf("%d days", n)
	}
	return d
}

func chartTitle(mission string, w dataprocessing.Window) string {
	if mission == "" {
		mission = domain.AllMissions
	}
	return fmt.Sprintf("Average Location for %s from %s to %s",
		mission, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}
