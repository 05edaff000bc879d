package exporter

import (
	"slices"

	"pkoinsight/pkg/contracts/domain"
)

// Derived columns appended to the source columns.
const (
	ColumnDuration = "mission_duration"
	ColumnYear     = "year"
)

// MissionTable renders the view as the source columns followed by the
// derived duration and year. Cells are the trimmed source text.
func MissionTable(view domain.View) ([]string, [][]string) {
	var headers []string
	if ds := view.Dataset(); ds != nil {
		headers = ds.Columns()
	}
	headers = append(headers, ColumnDuration, ColumnYear)

	missions := view.Missions()
	records := make([][]string, 0, len(missions))
	for _, m := range missions {
		row := slices.Clone(m.Cells)
		for len(row) < len(headers)-2 {
			row = append(row, "")
		}
		row = append(row, formatIntField(m.Duration), formatIntField(m.Year))
		records = append(records, row)
	}
	return headers, records
}
