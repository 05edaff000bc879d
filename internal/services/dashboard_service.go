package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"pkoinsight/internal/config"
	"pkoinsight/internal/dataprocessing"
	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/exporter"
	"pkoinsight/internal/infrastructure"
	"pkoinsight/internal/session"
	api "pkoinsight/pkg/contracts/api/v1"
	"pkoinsight/pkg/contracts/domain"
)

// SessionStore is the part of session.Manager the dashboard needs.
type SessionStore interface {
	Open(ctx context.Context, source string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Close(ctx context.Context, id string) error
	List() []session.Info
}

// AnalysisOptions tunes the computed views.
type AnalysisOptions struct {
	Latitude      dataprocessing.LatitudePolicy
	HistogramBins int
	TopN          int
	// AllowLocalSources lets clients open file paths on the server
	AllowLocalSources bool
}

// AnalysisOptionsFrom validates the analysis and source config sections.
func AnalysisOptionsFrom(cfg config.AnalysisConfig, source config.SourceConfig) (AnalysisOptions, error) {
	policy, err := dataprocessing.ParseLatitudePolicy(cfg.LatitudePolicy)
	if err != nil {
		return AnalysisOptions{}, apperrors.NewConfigError("invalid analysis.latitude_policy", err)
	}
	return AnalysisOptions{
		Latitude:          policy,
		HistogramBins:     cfg.HistogramBins,
		TopN:              cfg.TopN,
		AllowLocalSources: source.AllowLocal,
	}, nil
}

// DashboardService computes every dashboard view from a session's dataset.
// Each call recomputes its result from the immutable dataset.
type DashboardService struct {
	sessions SessionStore
	opts     AnalysisOptions
	metrics  *infrastructure.PipelineMetrics
	csv      *exporter.CSVWriter
	xlsx     *exporter.XLSXWriter
	logger   *slog.Logger
}

// NewDashboardService creates the service. metrics may be nil.
func NewDashboardService(sessions SessionStore, opts AnalysisOptions, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Latitude == "" {
		opts.Latitude = dataprocessing.FirstValid
	}
	logger = logger.With(slog.String("service", "dashboard"))
	return &DashboardService{
		sessions: sessions,
		opts:     opts,
		metrics:  metrics,
		csv:      exporter.NewCSVWriter(nil, logger),
		xlsx:     exporter.NewXLSXWriter(nil, logger),
		logger:   logger,
	}
}

// SessionResult describes a newly opened session.
type SessionResult struct {
	Session session.Info           `json:"session"`
	Report  *dataprocessing.Report `json:"report"`
}

// OpenSession loads a dataset into a new session.
func (s *DashboardService) OpenSession(ctx context.Context, req api.OpenSessionRequest) (*SessionResult, error) {
	if req.Source != "" {
		if err := config.ValidateSource(req.Source); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, err.Error(), ErrInvalidSource).
				WithContext("field", "source")
		}
		if !s.opts.AllowLocalSources && !isRemote(req.Source) {
			return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, "only http and https sources are accepted", ErrInvalidSource).
				WithContext("field", "source")
		}
	}

	sess, err := s.sessions.Open(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess.Info(), Report: sess.Report()}, nil
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// Session describes an open session.
func (s *DashboardService) Session(ctx context.Context, id string) (*SessionResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: sess.Info(), Report: sess.Report()}, nil
}

// Sessions lists open sessions.
func (s *DashboardService) Sessions(ctx context.Context) []session.Info {
	return s.sessions.List()
}

// CloseSession drops a session.
func (s *DashboardService) CloseSession(ctx context.Context, id string) error {
	return s.sessions.Close(ctx, id)
}

// Overview is the whole-dataset summary page.
type Overview struct {
	Session        session.Info                   `json:"session"`
	Activity       dataprocessing.ActivitySummary `json:"activity"`
	Durations      dataprocessing.DurationSummary `json:"durations"`
	Bounds         dataprocessing.Bounds          `json:"bounds"`
	Years          []dataprocessing.YearCount     `json:"years"`
	Locations      []dataprocessing.CategoryCount `json:"top_locations"`
	Departments    []dataprocessing.CategoryCount `json:"departments"`
	MissionOptions []string                       `json:"mission_options"`
	Display        OverviewDisplay                `json:"display"`
	Insights       []string                       `json:"insights"`
}

// Overview summarizes the full dataset of a session.
func (s *DashboardService) Overview(ctx context.Context, id string) (*Overview, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	sum := sess.Summary()
	missions := sess.Dataset().Missions()
	return &Overview{
		Session:        sess.Info(),
		Activity:       sum.Activity,
		Durations:      sum.Durations,
		Bounds:         sum.Bounds,
		Years:          sum.Years,
		Locations:      dataprocessing.CountBy(missions, dataprocessing.CategoryLocation, s.opts.TopN),
		Departments:    dataprocessing.CountBy(missions, dataprocessing.CategoryLeadDepartment, 0),
		MissionOptions: missionOptions(sess.Dataset()),
		Display:        overviewDisplay(sum.Activity, sum.Durations),
		Insights:       insights(sum.Activity, sum.Durations),
	}, nil
}

// missionOptions lists the mission selector entries, "All" first.
func missionOptions(ds *domain.Dataset) []string {
	var opts []string
	opts = append(opts, domain.AllMissions)
	for _, a := range ds.Acronyms() {
		if a != "" {
			opts = append(opts, a)
		}
	}
	return opts
}

// Table is a rendered mission table.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Count   int        `json:"count"`
}

func tableOf(view domain.View) Table {
	cols, rows := exporter.MissionTable(view)
	return Table{Columns: cols, Rows: rows, Count: len(rows)}
}

// Missions returns the full dataset as a table.
func (s *DashboardService) Missions(ctx context.Context, id string) (*Table, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	t := tableOf(domain.FullView(sess.Dataset()))
	return &t, nil
}

// MissionDetail is one mission with its display strings.
type MissionDetail struct {
	Mission domain.Mission `json:"mission"`
	Display MissionDisplay `json:"display"`
}

// Mission returns the first mission with the given acronym.
func (s *DashboardService) Mission(ctx context.Context, id, acronym string) (*MissionDetail, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	m, ok := sess.Dataset().Find(acronym)
	if !ok {
		return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound, "mission not found", ErrMissionNotFound).
			WithContext("mission_acronym", acronym)
	}
	return &MissionDetail{Mission: m, Display: missionDisplay(m)}, nil
}

// ViewQuery is the resolved query of a view.
type ViewQuery struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Mission string `json:"mission"`
}

// ViewResult is everything shown for a date range selection.
type ViewResult struct {
	Query      ViewQuery                        `json:"query"`
	Count      int                              `json:"count"`
	Table      Table                            `json:"table"`
	Durations  dataprocessing.DurationSummary   `json:"durations"`
	Display    DurationDisplay                  `json:"display"`
	Locations  []dataprocessing.LocationSummary `json:"locations"`
	RatioAxis  dataprocessing.Axis              `json:"ratio_axis"`
	ChartTitle string                           `json:"chart_title"`
}

// View filters a session's dataset and computes the view statistics.
func (s *DashboardService) View(ctx context.Context, id string, req api.ViewRequest) (*ViewResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	view, q, err := s.filter(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	return s.viewResult(view, q), nil
}

func (s *DashboardService) viewResult(view domain.View, q domain.Query) *ViewResult {
	missions := view.Missions()
	durations := dataprocessing.SummarizeDurations(missions)
	locations := dataprocessing.NewAggregator(s.opts.Latitude).Aggregate(view)
	w, _ := dataprocessing.NewWindow(q.Start, q.End)

	mission := q.Mission
	if q.AllCategories() {
		mission = domain.AllMissions
	}
	return &ViewResult{
		Query: ViewQuery{
			Start:   q.Start.Format(time.DateOnly),
			End:     q.End.Format(time.DateOnly),
			Mission: mission,
		},
		Count:      view.Len(),
		Table:      tableOf(view),
		Durations:  durations,
		Display:    durationDisplay(durations),
		Locations:  locations,
		RatioAxis:  dataprocessing.RatioAxis(locations),
		ChartTitle: chartTitle(mission, w),
	}
}

// filter resolves req against the session's bounds and runs the range filter.
func (s *DashboardService) filter(ctx context.Context, sess *session.Session, req api.ViewRequest) (domain.View, domain.Query, error) {
	ctx, span := otel.Tracer("pkoinsight/services").Start(ctx, "dashboard.filter")
	defer span.End()

	q, err := s.resolveQuery(sess, req)
	if err != nil {
		return domain.View{}, domain.Query{}, err
	}

	view, err := dataprocessing.Filter(sess.Dataset(), q)
	s.metrics.RecordFilter(ctx, view.Len(), err)
	if err != nil {
		s.logger.InfoContext(ctx, "invalid range rejected",
			slog.String("session_id", sess.ID()),
			slog.String("start", req.Start),
			slog.String("end", req.End))
		return domain.View{}, domain.Query{}, err
	}

	span.SetAttributes(attribute.Int("rows", view.Len()), attribute.String("mission", q.Mission))
	s.logger.DebugContext(ctx, "view computed",
		slog.String("session_id", sess.ID()),
		slog.Int("rows", view.Len()))
	return view, q, nil
}

func (s *DashboardService) resolveQuery(sess *session.Session, req api.ViewRequest) (domain.Query, error) {
	bounds := sess.Summary().Bounds
	q := domain.Query{
		Start:   bounds.Start.OrElse(time.Time{}),
		End:     bounds.End.OrElse(time.Now().UTC()),
		Mission: req.Mission,
	}
	// an open-ended mission may start after the last recorded end date
	if q.End.Before(q.Start) {
		q.End = time.Now().UTC()
	}

	if req.Start != "" {
		t, err := time.Parse(time.DateOnly, req.Start)
		if err != nil {
			return domain.Query{}, apperrors.NewAppError(apperrors.ErrTypeValidation, "start must be YYYY-MM-DD", fmt.Errorf("%w: %v", ErrInvalidDate, err)).
				WithContext("field", "start")
		}
		q.Start = t
	}
	if req.End != "" {
		t, err := time.Parse(time.DateOnly, req.End)
		if err != nil {
			return domain.Query{}, apperrors.NewAppError(apperrors.ErrTypeValidation, "end must be YYYY-MM-DD", fmt.Errorf("%w: %v", ErrInvalidDate, err)).
				WithContext("field", "end")
		}
		q.End = t
	}

	// a default end never makes a given start invalid
	if req.End == "" && q.End.Before(q.Start) {
		q.End = q.Start
	}
	return q, nil
}

// Counts returns category counts over the full dataset. A limit of 0 uses
// the configured top-N for locations and no limit otherwise.
func (s *DashboardService) Counts(ctx context.Context, id string, req api.CountsRequest) ([]dataprocessing.CategoryCount, error) {
	field, err := dataprocessing.ParseCategoryField(req.Field)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation, err.Error(), ErrInvalidField).
			WithContext("field", "field")
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 && field == dataprocessing.CategoryLocation {
		limit = s.opts.TopN
	}
	return dataprocessing.CountBy(sess.Dataset().Missions(), field, limit), nil
}

// Years returns missions started per year.
func (s *DashboardService) Years(ctx context.Context, id string) ([]dataprocessing.YearCount, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Summary().Years, nil
}

// DurationHistogram buckets the full dataset's durations.
func (s *DashboardService) DurationHistogram(ctx context.Context, id string, req api.HistogramRequest) ([]dataprocessing.DurationBin, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	bins := req.Bins
	if bins == 0 {
		bins = s.opts.HistogramBins
	}
	return dataprocessing.DurationHistogram(sess.Dataset().Missions(), bins), nil
}

// MalformedDates lists rows whose last_update did not parse.
func (s *DashboardService) MalformedDates(ctx context.Context, id string) ([]dataprocessing.MalformedDate, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Report().MalformedLastUpdate, nil
}

// Bundle computes the export bundle of a view.
func (s *DashboardService) Bundle(ctx context.Context, id string, req api.ViewRequest) (*exporter.Bundle, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	view, q, err := s.filter(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	return s.bundle(view, q), nil
}

func (s *DashboardService) bundle(view domain.View, q domain.Query) *exporter.Bundle {
	res := s.viewResult(view, q)
	missions := view.Missions()
	activity := dataprocessing.Activity(missions)

	return &exporter.Bundle{
		View: view,
		Summary: []exporter.SummaryRow{
			{Label: "Start", Value: res.Query.Start},
			{Label: "End", Value: res.Query.End},
			{Label: "Mission", Value: res.Query.Mission},
			{Label: "Missions in range", Value: fmt.Sprint(res.Count)},
			{Label: "Active missions", Value: fmt.Sprint(activity.Active)},
			{Label: "Inactive missions", Value: fmt.Sprint(activity.Inactive)},
			{Label: "Average mission duration", Value: res.Display.Average},
			{Label: "Median mission duration", Value: res.Display.Median},
			{Label: "Longest mission", Value: res.Display.Longest},
			{Label: "Shortest mission", Value: res.Display.Shortest},
		},
		Locations:   dataprocessing.CountBy(missions, dataprocessing.CategoryLocation, 0),
		Departments: dataprocessing.CountBy(missions, dataprocessing.CategoryLeadDepartment, 0),
		Years:       dataprocessing.YearHistogram(missions),
		Aggregates:  res.Locations,
	}
}

// ExportCSV writes the filtered mission table as CSV.
func (s *DashboardService) ExportCSV(ctx context.Context, id string, req api.ViewRequest, w io.Writer) error {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return err
	}
	view, _, err := s.filter(ctx, sess, req)
	if err != nil {
		return err
	}

	headers, records := exporter.MissionTable(view)
	if err := s.csv.WriteCSV(w, exporter.WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return apperrors.NewStorageError("csv export failed", err)
	}
	return nil
}

// ExportXLSX writes the view bundle as an Excel workbook.
func (s *DashboardService) ExportXLSX(ctx context.Context, id string, req api.ViewRequest, w io.Writer) error {
	b, err := s.Bundle(ctx, id, req)
	if err != nil {
		return err
	}
	if err := s.xlsx.Write(w, *b); err != nil {
		return apperrors.NewStorageError("xlsx export failed", err)
	}
	return nil
}
