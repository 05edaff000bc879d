package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"pkoinsight/internal/config"
	"pkoinsight/internal/dataprocessing"
	"pkoinsight/pkg/contracts/domain"
)

// Sheet names of the exported workbook, in order.
const (
	SheetSummary     = "Summary"
	SheetMissions    = "Missions"
	SheetLocations   = "Locations"
	SheetDepartments = "Departments"
	SheetYears       = "Years"
	SheetAggregates  = "Aggregates"
)

// SummaryRow is one label/value line of the Summary sheet.
type SummaryRow struct {
	Label string
	Value string
}

// Bundle is everything written to a workbook for one view.
type Bundle struct {
	View        domain.View
	Summary     []SummaryRow
	Locations   []dataprocessing.CategoryCount
	Departments []dataprocessing.CategoryCount
	Years       []dataprocessing.YearCount
	Aggregates  []dataprocessing.LocationSummary
}

// XLSXWriter writes Bundles as Excel workbooks.
type XLSXWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewXLSXWriter creates a workbook writer. paths may be nil when only Write
// is used.
func NewXLSXWriter(paths *config.Paths, logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{paths: paths, logger: logger.With(slog.String("component", "xlsx_exporter"))}
}

// Write renders b to w.
func (x *XLSXWriter) Write(w io.Writer, b Bundle) error {
	f, err := x.build(b)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile renders b to filePath. Relative paths go to the exports directory.
func (x *XLSXWriter) WriteFile(filePath string, b Bundle) (string, error) {
	fullPath := filePath
	if !filepath.IsAbs(filePath) && x.paths != nil {
		p, err := x.paths.GetExportPath(filePath)
		if err != nil {
			return "", err
		}
		fullPath = p
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := x.build(b)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	x.logger.Info("Workbook written",
		slog.String("full_path", fullPath),
		slog.Int("missions", b.View.Len()))
	return fullPath, nil
}

func (x *XLSXWriter) build(b Bundle) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]interface{}
	}{
		{SheetSummary, []string{"metric", "value"}, summaryRows(b.Summary)},
		{SheetMissions, nil, nil},
		{SheetLocations, []string{domain.ColumnLocation, "count"}, countRows(b.Locations)},
		{SheetDepartments, []string{domain.ColumnLeadDepartment, "count"}, countRows(b.Departments)},
		{SheetYears, []string{"year", "count"}, yearRows(b.Years)},
		{SheetAggregates, []string{domain.ColumnAcronym, domain.ColumnLatitude, domain.ColumnLongitude, "average_location", "count"}, aggregateRows(b.Aggregates)},
	}

	headers, records := MissionTable(b.View)
	sheets[1].headers = headers
	for _, rec := range records {
		row := make([]interface{}, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		sheets[1].rows = append(sheets[1].rows, row)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, s.name, s.headers, s.rows, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if len(headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(headers), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func summaryRows(rows []SummaryRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = []interface{}{r.Label, r.Value}
	}
	return out
}

func countRows(counts []dataprocessing.CategoryCount) [][]interface{} {
	out := make([][]interface{}, len(counts))
	for i, c := range counts {
		out[i] = []interface{}{c.Value, c.Count}
	}
	return out
}

func yearRows(years []dataprocessing.YearCount) [][]interface{} {
	out := make([][]interface{}, len(years))
	for i, y := range years {
		out[i] = []interface{}{y.Year, y.Count}
	}
	return out
}

// optional renders a missing field as an empty cell.
func optional(f domain.Field[float64]) interface{} {
	if v, ok := f.Get(); ok {
		return v
	}
	return nil
}

func aggregateRows(aggs []dataprocessing.LocationSummary) [][]interface{} {
	out := make([][]interface{}, len(aggs))
	for i, a := range aggs {
		out[i] = []interface{}{a.Acronym, optional(a.FirstLatitude), optional(a.MeanLongitude), optional(a.Ratio), a.Count}
	}
	return out
}
