package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "pkoinsight/internal/errors"
)

// Format identifies how a payload is decoded.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Table is the raw tabular payload: a header row and data rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]string
	Format  Format
}

// Options configures a Loader.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Loader fetches a dataset once per call. It never retries.
type Loader struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// New creates a Loader with its own HTTP client.
func New(opts Options, logger *slog.Logger) *Loader {
	return NewWithClient(&http.Client{Timeout: opts.Timeout}, opts, logger)
}

// NewWithClient creates a Loader using the provided client.
func NewWithClient(client *http.Client, opts Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 32 << 20
	}
	return &Loader{
		client: client,
		opts:   opts,
		logger: logger.With(slog.String("component", "loader")),
	}
}

// Load fetches and decodes source. Sources are http(s) URLs, file:// URLs
// or filesystem paths. Any failure is an ErrSourceUnavailable.
func (l *Loader) Load(ctx context.Context, source string) (*Table, error) {
	ctx, span := otel.Tracer("pkoinsight/loader").Start(ctx, "loader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	start := time.Now()
	table, err := l.load(ctx, source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.WarnContext(ctx, "dataset load failed",
			slog.String("source", source),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	span.SetAttributes(attribute.Int("rows", len(table.Rows)), attribute.String("format", string(table.Format)))
	l.logger.InfoContext(ctx, "dataset fetched",
		slog.String("source", source),
		slog.String("format", string(table.Format)),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", len(table.Rows)),
		slog.Duration("duration", time.Since(start)))
	return table, nil
}

func (l *Loader) load(ctx context.Context, source string) (*Table, error) {
	payload, format, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, unavailable(source, "empty payload", nil)
	}

	var table *Table
	switch format {
	case FormatXLSX:
		table, err = DecodeXLSX(bytes.NewReader(payload))
	default:
		if looksLikeMarkup(payload) {
			return nil, unavailable(source, "payload is not tabular", nil)
		}
		table, err = DecodeCSV(bytes.NewReader(payload))
	}
	if err != nil {
		parseErr := apperrors.NewParsingError("decode "+string(format)+" payload", err).
			WithContext("format", string(format))
		return nil, unavailable(source, "decode failed", parseErr)
	}
	if len(table.Rows) == 0 {
		return nil, unavailable(source, "payload has no data rows", nil)
	}
	return table, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, Format, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.fetch(ctx, source, u)
	}

	filePath := source
	if err == nil && u.Scheme == "file" {
		filePath = u.Path
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", unavailable(source, "open failed", err)
	}
	defer f.Close()

	data, err := l.readLimited(f)
	if err != nil {
		return nil, "", unavailable(source, "read failed", err)
	}
	return data, formatFromName(filePath), nil
}

func (l *Loader) fetch(ctx context.Context, source string, u *url.URL) ([]byte, Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", unavailable(source, "invalid request", err)
	}
	if l.opts.UserAgent != "" {
		req.Header.Set("User-Agent", l.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/csv, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet;q=0.9, */*;q=0.1")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", unavailable(source, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", unavailable(source, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	format, ok := formatFromContentType(resp.Header.Get("Content-Type"))
	if !ok {
		return nil, "", unavailable(source, "unexpected content type "+resp.Header.Get("Content-Type"), nil)
	}
	if format == "" {
		format = formatFromName(u.Path)
	}

	data, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, "", unavailable(source, "read failed", err)
	}
	return data, format, nil
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.opts.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.opts.MaxBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", l.opts.MaxBytes)
	}
	return data, nil
}

// formatFromContentType maps a response media type to a decoder. An empty
// format with ok=true means "decide by file name".
func formatFromContentType(contentType string) (Format, bool) {
	if contentType == "" {
		return "", true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", true
	}
	switch mediaType {
	case "text/csv", "application/csv", "text/plain":
		return FormatCSV, true
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, true
	case "text/html", "application/json", "application/xml", "text/xml", "application/problem+json":
		return "", false
	default:
		return "", true
	}
}

func formatFromName(name string) Format {
	if strings.EqualFold(path.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

func looksLikeMarkup(payload []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(payload, utf8BOM), " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '<' || trimmed[0] == '{' || trimmed[0] == '[')
}

func unavailable(source, reason string, cause error) error {
	return apperrors.NewSourceUnavailableError(reason, cause).WithContext("source", source)
}
