package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "pkoinsight/internal/errors"
)

const sampleCSV = "mission_acronym,start_date,end_date,mission_latitude\n" +
	"UNMIK, 1999-06-10 ,,\"42,662\"\n" +
	"MINUSMA,2013-04-25,2023-12-31,17.57\n"

func testLoader(opts Options) *Loader {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	return New(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, contentType string, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pkoinsight-test", r.Header.Get("User-Agent"))
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoader_LoadCSVOverHTTP(t *testing.T) {
	srv := serve(t, "text/csv; charset=utf-8", http.StatusOK, []byte(sampleCSV))

	table, err := testLoader(Options{UserAgent: "pkoinsight-test"}).Load(context.Background(), srv.URL+"/CSV")
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, table.Format)
	assert.Equal(t, []string{"mission_acronym", "start_date", "end_date", "mission_latitude"}, table.Columns)
	require.Len(t, table.Rows, 2)
	// cells are passed through untouched; trimming belongs to the normalizer
	assert.Equal(t, []string{"UNMIK", " 1999-06-10 ", "", "42,662"}, table.Rows[0])
}

func TestLoader_SourceUnavailable(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		opts        Options
		wantReason  string
	}{
		{"server error", "text/csv", http.StatusServiceUnavailable, "", Options{}, "unexpected status 503"},
		{"not found", "text/csv", http.StatusNotFound, "missing", Options{}, "unexpected status 404"},
		{"html page", "text/html", http.StatusOK, "<html></html>", Options{}, "unexpected content type"},
		{"json body", "application/json", http.StatusOK, `{"a":1}`, Options{}, "unexpected content type"},
		{"markup labelled as text", "text/plain", http.StatusOK, "<!doctype html><p>maintenance</p>", Options{}, "not tabular"},
		{"empty payload", "text/csv", http.StatusOK, "  \n", Options{}, "empty payload"},
		{"header only", "text/csv", http.StatusOK, "mission_acronym,start_date\n", Options{}, "no data rows"},
		{"too large", "text/csv", http.StatusOK, sampleCSV, Options{MaxBytes: 10}, "read failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.contentType, tt.status, []byte(tt.body))
			tt.opts.UserAgent = "pkoinsight-test"

			_, err := testLoader(tt.opts).Load(context.Background(), srv.URL)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}
}

func TestLoader_DecodeFailureIsParsingError(t *testing.T) {
	srv := serve(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", http.StatusOK, []byte("not a zip archive"))

	_, err := testLoader(Options{UserAgent: "pkoinsight-test"}).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, &apperrors.AppError{Type: apperrors.ErrTypeParsing}))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	parseErr, ok := appErr.Cause.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, "xlsx", parseErr.Context["format"])
}

func TestLoader_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := testLoader(Options{}).Load(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, addr, appErr.Context["source"])
}

func TestLoader_ContextCancelled(t *testing.T) {
	srv := serve(t, "text/csv", http.StatusOK, []byte(sampleCSV))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testLoader(Options{UserAgent: "pkoinsight-test"}).Load(ctx, srv.URL)
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pko.csv")
	require.NoError(t, os.WriteFile(p, append([]byte{0xEF, 0xBB, 0xBF}, sampleCSV...), 0644))

	for _, source := range []string{p, "file://" + filepath.ToSlash(p)} {
		table, err := testLoader(Options{}).Load(context.Background(), source)
		require.NoError(t, err, source)
		assert.Equal(t, "mission_acronym", table.Columns[0], "BOM must be stripped")
		assert.Len(t, table.Rows, 2)
	}

	_, err := testLoader(Options{}).Load(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.Is(err, apperrors.ErrSourceUnavailable))
}

func TestLoader_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"mission_acronym", "start_date", "end_date"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"UNFICYP", "1964-03-27"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"UNDOF", "1974-05-31", ""}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	srv := serve(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", http.StatusOK, buf.Bytes())

	table, err := testLoader(Options{UserAgent: "pkoinsight-test"}).Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, table.Format)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"UNFICYP", "1964-03-27", ""}, table.Rows[0], "short rows are padded")
}

func TestDecodeCSV_RaggedRows(t *testing.T) {
	table, err := DecodeCSV(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "", ""}, {"1", "2", "3"}}, table.Rows)
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		in     string
		want   Format
		wantOK bool
	}{
		{"", "", true},
		{"text/csv", FormatCSV, true},
		{"text/plain; charset=utf-8", FormatCSV, true},
		{"application/octet-stream", "", true},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatXLSX, true},
		{"text/html; charset=utf-8", "", false},
	}
	for _, tt := range tests {
		got, ok := formatFromContentType(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
	}
}
