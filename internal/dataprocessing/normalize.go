package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pkoinsight/internal/loader"
	"pkoinsight/pkg/contracts/domain"
)

// ErrSchemaMismatch is returned when a required column is absent.
var ErrSchemaMismatch = errors.New("dataset schema mismatch")

// RequiredColumns must be present in every source table.
var RequiredColumns = []string{
	domain.ColumnAcronym,
	domain.ColumnStartDate,
	domain.ColumnEndDate,
}

// missingMarkers are placeholder cell values that stand for no data.
var missingMarkers = map[string]struct{}{
	"n/a":  {},
	"na":   {},
	"nan":  {},
	"nat":  {},
	"null": {},
	"none": {},
	"#n/a": {},
	"-":    {},
}

// TrimField strips surrounding whitespace. Blank cells are missing with
// ReasonEmpty; placeholders such as "N/A" are missing with ReasonMarker.
func TrimField(raw string) domain.Field[string] {
	v := strings.TrimSpace(raw)
	if v == "" {
		return domain.Missing[string](raw, domain.ReasonEmpty)
	}
	if _, ok := missingMarkers[strings.ToLower(v)]; ok {
		return domain.Missing[string](raw, domain.ReasonMarker)
	}
	return domain.Present(v, raw)
}

// ParseDate parses a trimmed cell with a tolerant date parser. Ambiguous
// numeric dates are read month first; a value that only makes sense day
// first, like "29/05/1948", is read that way. Results are in UTC.
// Unrecognized text yields ReasonUnparseable.
func ParseDate(f domain.Field[string]) domain.Field[time.Time] {
	v, ok := f.Get()
	if !ok {
		return domain.Missing[time.Time](f.Raw, f.Reason)
	}
	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		t, err = dateparse.ParseIn(v, time.UTC, dateparse.PreferMonthFirst(false))
	}
	if err != nil {
		return domain.Missing[time.Time](f.Raw, domain.ReasonUnparseable)
	}
	return domain.Present(t.UTC(), f.Raw)
}

// StripThousands removes "," grouping separators, so "12,345.6" becomes
// "12345.6".
func StripThousands(f domain.Field[string]) domain.Field[string] {
	v, ok := f.Get()
	if !ok {
		return f
	}
	return domain.Present(strings.ReplaceAll(v, ",", ""), f.Raw)
}

// ParseNumber parses a decimal. Infinities and NaN are unparseable.
func ParseNumber(f domain.Field[string]) domain.Field[float64] {
	v, ok := f.Get()
	if !ok {
		return domain.Missing[float64](f.Raw, f.Reason)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return domain.Missing[float64](f.Raw, domain.ReasonUnparseable)
	}
	return domain.Present(n, f.Raw)
}

// NormalizeDate is TrimField followed by ParseDate.
func NormalizeDate(raw string) domain.Field[time.Time] {
	return ParseDate(TrimField(raw))
}

// NormalizeNumber is TrimField, StripThousands and ParseNumber.
func NormalizeNumber(raw string) domain.Field[float64] {
	return ParseNumber(StripThousands(TrimField(raw)))
}

// MalformedDate identifies a row whose date cell holds no usable date.
type MalformedDate struct {
	Index   int                  `json:"index"`
	Acronym string               `json:"mission_acronym"`
	Raw     string               `json:"raw"`
	Reason  domain.MissingReason `json:"reason"`
}

// Report summarizes what normalization found in the source.
type Report struct {
	Rows             int            `json:"rows"`
	SkippedBlankRows int            `json:"skipped_blank_rows"`
	AbsentColumns    []string       `json:"absent_columns,omitempty"`
	// Unparseable counts cells holding text that is not a value, placeholders
	// like "N/A" included; Missing counts blank cells
	Unparseable map[string]int `json:"unparseable"`
	Missing     map[string]int `json:"missing"`
	// MalformedLastUpdate lists rows without a usable last_update: blank,
	// placeholder or unparseable. It stays empty when the column is absent.
	MalformedLastUpdate []MalformedDate `json:"malformed_last_update"`
}

// UnparseableTotal sums unparseable cells over every column.
func (r *Report) UnparseableTotal() int {
	total := 0
	for _, n := range r.Unparseable {
		total += n
	}
	return total
}

func (r *Report) track(column string, reason domain.MissingReason) {
	switch reason {
	case domain.ReasonUnparseable, domain.ReasonMarker:
		r.Unparseable[column]++
	case domain.ReasonEmpty:
		r.Missing[column]++
	}
}

// Normalizer converts loader tables into datasets.
type Normalizer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		logger: logger.With(slog.String("component", "normalizer")),
		now:    time.Now,
	}
}

type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// cell returns the raw cell for column, and false when the column is absent.
func (c columnIndex) cell(row []string, column string) (string, bool) {
	i, ok := c[column]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

// Normalize builds a Dataset from table. Rows with every cell blank are
// skipped; every other row is kept even when none of its dates parse.
func (n *Normalizer) Normalize(ctx context.Context, source string, table *loader.Table) (*domain.Dataset, *Report, error) {
	_, span := otel.Tracer("pkoinsight/dataprocessing").Start(ctx, "dataprocessing.Normalize")
	defer span.End()

	if table == nil {
		return nil, nil, fmt.Errorf("%w: no table", ErrSchemaMismatch)
	}

	cols := indexColumns(table.Columns)
	var absentRequired []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			absentRequired = append(absentRequired, name)
		}
	}
	if len(absentRequired) > 0 {
		return nil, nil, fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(absentRequired, ", "))
	}

	report := &Report{
		Unparseable:         make(map[string]int),
		Missing:             make(map[string]int),
		MalformedLastUpdate: []MalformedDate{},
	}
	for _, name := range []string{
		domain.ColumnName, domain.ColumnLastUpdate, domain.ColumnLatitude, domain.ColumnLongitude,
		domain.ColumnLocation, domain.ColumnLeadDepartment, domain.ColumnIsActive,
	} {
		if _, ok := cols[name]; !ok {
			report.AbsentColumns = append(report.AbsentColumns, name)
		}
	}

	header := make([]string, len(table.Columns))
	for i, name := range table.Columns {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	}

	missions := make([]domain.Mission, 0, len(table.Rows))
	for _, row := range table.Rows {
		if blankRow(row) {
			report.SkippedBlankRows++
			continue
		}
		m := n.normalizeRow(cols, row, report)
		m.Index = len(missions)
		if !m.LastUpdate.OK() && m.LastUpdate.Reason != domain.ReasonNoColumn {
			report.MalformedLastUpdate = append(report.MalformedLastUpdate, MalformedDate{
				Index:   m.Index,
				Acronym: m.Acronym,
				Raw:     strings.TrimSpace(m.LastUpdate.Raw),
				Reason:  m.LastUpdate.Reason,
			})
		}
		missions = append(missions, m)
	}
	report.Rows = len(missions)

	for column, count := range report.Unparseable {
		n.logger.DebugContext(ctx, "unparseable values",
			slog.String("column", column),
			slog.Int("count", count))
	}
	span.SetAttributes(
		attribute.Int("rows", report.Rows),
		attribute.Int("unparseable", report.UnparseableTotal()),
	)
	n.logger.InfoContext(ctx, "dataset normalized",
		slog.String("source", source),
		slog.Int("rows", report.Rows),
		slog.Int("skipped_blank_rows", report.SkippedBlankRows),
		slog.Int("unparseable", report.UnparseableTotal()),
		slog.Int("malformed_last_update", len(report.MalformedLastUpdate)))

	return domain.NewDataset(source, n.now().UTC(), header, missions), report, nil
}

func (n *Normalizer) normalizeRow(cols columnIndex, row []string, report *Report) domain.Mission {
	text := func(column string) string {
		raw, _ := cols.cell(row, column)
		return strings.TrimSpace(raw)
	}
	date := func(column string) domain.Field[time.Time] {
		raw, ok := cols.cell(row, column)
		if !ok {
			return domain.Missing[time.Time]("", domain.ReasonNoColumn)
		}
		f := NormalizeDate(raw)
		report.track(column, f.Reason)
		return f
	}
	number := func(column string) domain.Field[float64] {
		raw, ok := cols.cell(row, column)
		if !ok {
			return domain.Missing[float64]("", domain.ReasonNoColumn)
		}
		f := NormalizeNumber(raw)
		report.track(column, f.Reason)
		return f
	}

	cells := make([]string, len(row))
	for i, c := range row {
		cells[i] = strings.TrimSpace(c)
	}

	m := domain.Mission{
		Acronym:        text(domain.ColumnAcronym),
		Name:           text(domain.ColumnName),
		Location:       text(domain.ColumnLocation),
		LeadDepartment: text(domain.ColumnLeadDepartment),
		IsActive:       text(domain.ColumnIsActive),
		StartDate:      date(domain.ColumnStartDate),
		EndDate:        date(domain.ColumnEndDate),
		LastUpdate:     date(domain.ColumnLastUpdate),
		Latitude:       number(domain.ColumnLatitude),
		Longitude:      number(domain.ColumnLongitude),
		Cells:          cells,
	}
	return Derive(m)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
