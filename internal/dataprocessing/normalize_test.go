package dataprocessing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkoinsight/internal/loader"
	"pkoinsight/pkg/contracts/domain"
)

func TestTrimField(t *testing.T) {
	tests := []struct {
		raw        string
		want       string
		wantReason domain.MissingReason
	}{
		{"  UNMIK ", "UNMIK", domain.ReasonNone},
		{"", "", domain.ReasonEmpty},
		{"   ", "", domain.ReasonEmpty},
		{"N/A", "", domain.ReasonMarker},
		{"nan", "", domain.ReasonMarker},
		{"-", "", domain.ReasonMarker},
		{"NA-1", "NA-1", domain.ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f := TrimField(tt.raw)
			v, ok := f.Get()
			assert.Equal(t, tt.wantReason == domain.ReasonNone, ok)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.raw, f.Raw)
			assert.Equal(t, tt.wantReason, f.Reason)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		want       time.Time
		wantReason domain.MissingReason
	}{
		{"iso", "2013-04-25", date("2013-04-25"), domain.ReasonNone},
		{"padded", "  1999-06-10 ", date("1999-06-10"), domain.ReasonNone},
		{"with time", "2013-04-25 00:00:00", date("2013-04-25"), domain.ReasonNone},
		{"slashes", "04/25/2013", date("2013-04-25"), domain.ReasonNone},
		{"long form", "October 7, 1970", date("1970-10-07"), domain.ReasonNone},
		{"day first", "29/05/1948", date("1948-05-29"), domain.ReasonNone},
		{"ambiguous reads month first", "03/04/2005", date("2005-03-04"), domain.ReasonNone},
		{"empty", "", time.Time{}, domain.ReasonEmpty},
		{"marker", "NaT", time.Time{}, domain.ReasonMarker},
		{"garbage", "sometime in spring", time.Time{}, domain.ReasonUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NormalizeDate(tt.raw)
			if tt.wantReason != domain.ReasonNone {
				assert.False(t, f.OK())
				assert.Equal(t, tt.wantReason, f.Reason)
				_, ok := f.Get()
				assert.False(t, ok, "missing dates never expose a zero time")
				return
			}
			got, ok := f.Get()
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		raw        string
		want       float64
		wantReason domain.MissingReason
	}{
		{"12,345.6", 12345.6, domain.ReasonNone},
		{" 42,662 ", 42662, domain.ReasonNone},
		{"-3.5", -3.5, domain.ReasonNone},
		{"N/A", 0, domain.ReasonMarker},
		{"", 0, domain.ReasonEmpty},
		{"north", 0, domain.ReasonUnparseable},
		{"Inf", 0, domain.ReasonUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f := NormalizeNumber(tt.raw)
			if tt.wantReason != domain.ReasonNone {
				assert.False(t, f.OK())
				assert.Equal(t, tt.wantReason, f.Reason)
				return
			}
			got, ok := f.Get()
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func testNormalizer() *Normalizer {
	n := NewNormalizer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.now = func() time.Time { return date("2024-01-01") }
	return n
}

func TestNormalizer_Normalize(t *testing.T) {
	table := &loader.Table{
		Columns: []string{" Mission_Acronym", "start_date", "end_date", "last_update", "mission_latitude", "mission_longitude", "mission_location", "mission_isactive"},
		Rows: [][]string{
			{"UNMIK ", " 1999-06-10", "", "2023-05-01", "42,662", "21.166", " Kosovo ", "Yes"},
			{"", "", "", "", "", "", "", ""},
			{"UNOMIG", "1993-08-24", "2009-06-15", "last week", "N/A", "41.6", "Georgia", "No"},
			{"ONUC", "not recorded", "", "", "", "", "Congo", "No"},
		},
	}

	ds, report, err := testNormalizer().Normalize(context.Background(), "memory", table)
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 1, report.SkippedBlankRows)
	assert.Equal(t, "Mission_Acronym", ds.Columns()[0])
	assert.Equal(t, "memory", ds.Source())

	unmik := ds.At(0)
	assert.Equal(t, "UNMIK", unmik.Acronym)
	assert.Equal(t, "Kosovo", unmik.Location)
	assert.True(t, unmik.Active())
	assert.True(t, unmik.Ongoing())
	assert.Equal(t, 42662.0, unmik.Latitude.OrElse(0))
	assert.Equal(t, 1999, unmik.Year.OrElse(0))
	assert.False(t, unmik.Duration.OK())
	assert.Equal(t, domain.ReasonUndefined, unmik.Duration.Reason)
	assert.Equal(t, "", unmik.LeadDepartment, "absent text columns are empty")
	assert.Equal(t, "42,662", unmik.Cells[4], "cells keep source text, trimmed")

	unomig := ds.At(1)
	assert.Equal(t, 1, unomig.Index, "indices are renumbered after skipped rows")
	assert.False(t, unomig.Latitude.OK())
	assert.Equal(t, domain.ReasonMarker, unomig.Latitude.Reason)
	assert.Equal(t, 5774, unomig.Duration.OrElse(-1))

	onuc := ds.At(2)
	assert.False(t, onuc.StartDate.OK(), "row is kept although no date parses")
	assert.False(t, onuc.Year.OK())

	assert.Equal(t, []MalformedDate{
		{Index: 1, Acronym: "UNOMIG", Raw: "last week", Reason: domain.ReasonUnparseable},
		{Index: 2, Acronym: "ONUC", Raw: "", Reason: domain.ReasonEmpty},
	}, report.MalformedLastUpdate)
	assert.Equal(t, 1, report.Unparseable[domain.ColumnStartDate])
	assert.Equal(t, 1, report.Unparseable[domain.ColumnLastUpdate])
	assert.Equal(t, 1, report.Unparseable[domain.ColumnLatitude], "N/A is a placeholder, not a blank")
	assert.Equal(t, 3, report.UnparseableTotal())
	assert.Equal(t, 2, report.Missing[domain.ColumnEndDate])
	assert.Contains(t, report.AbsentColumns, domain.ColumnLeadDepartment)

	// the table is not modified
	assert.Equal(t, "UNMIK ", table.Rows[0][0])
}

func TestNormalizer_MalformedLastUpdate(t *testing.T) {
	table := &loader.Table{
		Columns: []string{"mission_acronym", "start_date", "end_date", "last_update"},
		Rows: [][]string{
			{"A", "2001-01-01", "", ""},
			{"B", "2001-01-01", "", "garbage"},
			{"C", "2001-01-01", "", "N/A"},
			{"D", "2001-01-01", "", "2020-02-02"},
		},
	}

	_, report, err := testNormalizer().Normalize(context.Background(), "memory", table)
	require.NoError(t, err)
	assert.Equal(t, []MalformedDate{
		{Index: 0, Acronym: "A", Raw: "", Reason: domain.ReasonEmpty},
		{Index: 1, Acronym: "B", Raw: "garbage", Reason: domain.ReasonUnparseable},
		{Index: 2, Acronym: "C", Raw: "N/A", Reason: domain.ReasonMarker},
	}, report.MalformedLastUpdate)

	table.Columns[3] = "updated"
	_, report, err = testNormalizer().Normalize(context.Background(), "memory", table)
	require.NoError(t, err)
	assert.Empty(t, report.MalformedLastUpdate, "an absent column is not a malformed value")
}

func TestNormalizer_SchemaMismatch(t *testing.T) {
	table := &loader.Table{
		Columns: []string{"mission_acronym", "start"},
		Rows:    [][]string{{"UNMIK", "1999-06-10"}},
	}

	_, _, err := testNormalizer().Normalize(context.Background(), "memory", table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "start_date")
	assert.Contains(t, err.Error(), "end_date")

	_, _, err = testNormalizer().Normalize(context.Background(), "memory", nil)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}
