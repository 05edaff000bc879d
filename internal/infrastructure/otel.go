package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"pkoinsight/internal/config"
)

const (
	ServiceName         = "pkoinsight"
	InstrumentationName = "pkoinsight"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
}

// OTelConfigFrom maps the telemetry section of the application config.
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    cfg.Environment,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		SampleRatio:    cfg.SampleRatio,
	}
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics according to cfg. Disabled
// signals fall back to no-op implementations so callers never nil-check.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(InstrumentationName),
		Meter:  noop.NewMeterProvider().Meter(InstrumentationName),
	}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// PipelineMetrics holds the instruments for the load, normalize and query stages.
type PipelineMetrics struct {
	DatasetsLoaded    metric.Int64Counter
	LoadFailures      metric.Int64Counter
	LoadDuration      metric.Float64Histogram
	RowsLoaded        metric.Int64Histogram
	UnparseableFields metric.Int64Counter

	FilterQueries metric.Int64Counter
	InvalidRanges metric.Int64Counter
	ViewSize      metric.Int64Histogram

	ActiveSessions       metric.Int64UpDownCounter
	WebSocketConnections metric.Int64UpDownCounter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
}

// NewPipelineMetrics creates the instruments on meter. A nil meter yields
// no-op instruments.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(InstrumentationName)
	}

	var (
		m   PipelineMetrics
		err error
	)
	counter := func(dst *metric.Int64Counter, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc))
	}
	updown := func(dst *metric.Int64UpDownCounter, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	}

	counter(&m.DatasetsLoaded, "pko_datasets_loaded_total", "Datasets fetched and normalized")
	counter(&m.LoadFailures, "pko_dataset_load_failures_total", "Dataset loads that failed")
	counter(&m.UnparseableFields, "pko_unparseable_fields_total", "Cells that could not be parsed, by column")
	counter(&m.FilterQueries, "pko_filter_queries_total", "Range filter evaluations")
	counter(&m.InvalidRanges, "pko_invalid_ranges_total", "Filter queries rejected because start is after end")
	counter(&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests")
	updown(&m.ActiveSessions, "pko_sessions_active", "Open analysis sessions")
	updown(&m.WebSocketConnections, "pko_websocket_connections", "Open WebSocket connections")
	updown(&m.HTTPActiveRequests, "http_active_requests", "Number of active HTTP requests")
	if err != nil {
		return nil, err
	}

	if m.LoadDuration, err = meter.Float64Histogram("pko_dataset_load_duration_seconds",
		metric.WithDescription("Time to fetch and normalize a dataset"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.RowsLoaded, err = meter.Int64Histogram("pko_dataset_rows",
		metric.WithDescription("Rows per loaded dataset")); err != nil {
		return nil, err
	}
	if m.ViewSize, err = meter.Int64Histogram("pko_view_rows",
		metric.WithDescription("Rows selected by a range filter")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordLoad records one dataset load attempt.
func (m *PipelineMetrics) RecordLoad(ctx context.Context, duration time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.LoadFailures.Add(ctx, 1)
		return
	}
	m.DatasetsLoaded.Add(ctx, 1)
	m.LoadDuration.Record(ctx, duration.Seconds())
	m.RowsLoaded.Record(ctx, int64(rows))
}

// RecordUnparseable records unparseable cells of one column.
func (m *PipelineMetrics) RecordUnparseable(ctx context.Context, column string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.UnparseableFields.Add(ctx, int64(count), metric.WithAttributes(attribute.String("column", column)))
}

// RecordFilter records one filter evaluation.
func (m *PipelineMetrics) RecordFilter(ctx context.Context, rows int, err error) {
	if m == nil {
		return
	}
	m.FilterQueries.Add(ctx, 1)
	if err != nil {
		m.InvalidRanges.Add(ctx, 1)
		return
	}
	m.ViewSize.Record(ctx, int64(rows))
}

// SessionDelta tracks session opens (+1) and closes (-1).
func (m *PipelineMetrics) SessionDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}

// WebSocketDelta tracks WebSocket connects (+1) and disconnects (-1).
func (m *PipelineMetrics) WebSocketDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.WebSocketConnections.Add(ctx, delta)
}
