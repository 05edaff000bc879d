package http

import (
	"context"
	"io"

	"pkoinsight/internal/dataprocessing"
	"pkoinsight/internal/services"
	"pkoinsight/internal/session"
	api "pkoinsight/pkg/contracts/api/v1"
)

// DashboardServiceInterface is the service surface the dashboard routes use.
// *services.DashboardService satisfies it.
type DashboardServiceInterface interface {
	OpenSession(ctx context.Context, req api.OpenSessionRequest) (*services.SessionResult, error)
	Session(ctx context.Context, id string) (*services.SessionResult, error)
	Sessions(ctx context.Context) []session.Info
	CloseSession(ctx context.Context, id string) error

	Overview(ctx context.Context, id string) (*services.Overview, error)
	Missions(ctx context.Context, id string) (*services.Table, error)
	Mission(ctx context.Context, id, acronym string) (*services.MissionDetail, error)
	View(ctx context.Context, id string, req api.ViewRequest) (*services.ViewResult, error)

	Counts(ctx context.Context, id string, req api.CountsRequest) ([]dataprocessing.CategoryCount, error)
	Years(ctx context.Context, id string) ([]dataprocessing.YearCount, error)
	DurationHistogram(ctx context.Context, id string, req api.HistogramRequest) ([]dataprocessing.DurationBin, error)
	MalformedDates(ctx context.Context, id string) ([]dataprocessing.MalformedDate, error)

	ExportCSV(ctx context.Context, id string, req api.ViewRequest, w io.Writer) error
	ExportXLSX(ctx context.Context, id string, req api.ViewRequest, w io.Writer) error
}

var _ DashboardServiceInterface = (*services.DashboardService)(nil)
