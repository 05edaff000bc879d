package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "pkoinsight/internal/errors"
	mw "pkoinsight/internal/middleware"
	api "pkoinsight/pkg/contracts/api/v1"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DashboardHandler serves the session and analysis routes.
type DashboardHandler struct {
	service      DashboardServiceInterface
	validator    *mw.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	now          func() time.Time
}

// NewDashboardHandler creates a new dashboard handler with RFC 7807 error handling
func NewDashboardHandler(service DashboardServiceInterface, validator *mw.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		now:          time.Now,
	}
}

// Routes returns the session routes, mounted under /api/sessions.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(
		render.SetContentType(render.ContentTypeJSON),
		mw.ContentTypeValidator(h.errorHandler, "application/json"),
	).Post("/", h.OpenSession)
	r.Get("/", h.ListSessions)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)

		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Get("/overview", h.GetOverview)
		r.Get("/missions", h.GetMissions)
		r.Get("/missions/{acronym}", h.GetMission)
		r.Get("/view", h.GetView)
		r.Get("/counts/{field}", h.GetCounts)
		r.Get("/years", h.GetYears)
		r.Get("/durations/histogram", h.GetDurationHistogram)
		r.Get("/diagnostics/malformed-dates", h.GetMalformedDates)
		r.Get("/export.{format}", h.Export)
	})

	return r
}

// SessionCtx rejects obviously malformed session IDs before any lookup.
func (h *DashboardHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if id == "" || len(id) > 64 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session_id", "Invalid session ID"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OpenSession handles POST /api/sessions
func (h *DashboardHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req api.OpenSessionRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "opening session",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("source", req.Source))

	res, err := h.service.OpenSession(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+res.Session.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, success(res))
}

// ListSessions handles GET /api/sessions
func (h *DashboardHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.service.Sessions(r.Context())
	render.JSON(w, r, successList(sessions, len(sessions)))
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Session(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, success(res))
}

// CloseSession handles DELETE /api/sessions/{sessionID}
func (h *DashboardHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseSession(r.Context(), sessionID(r)); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOverview handles GET /api/sessions/{sessionID}/overview
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Overview(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, success(res))
}

// GetMissions handles GET /api/sessions/{sessionID}/missions
func (h *DashboardHandler) GetMissions(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Missions(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, successList(res, res.Count))
}

// GetMission handles GET /api/sessions/{sessionID}/missions/{acronym}
func (h *DashboardHandler) GetMission(w http.ResponseWriter, r *http.Request) {
	acronym, err := url.PathUnescape(chi.URLParam(r, "acronym"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("acronym", "Invalid mission acronym"))
		return
	}

	res, err := h.service.Mission(r.Context(), sessionID(r), acronym)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, success(res))
}

// GetView handles GET /api/sessions/{sessionID}/view?start=&end=&mission=
func (h *DashboardHandler) GetView(w http.ResponseWriter, r *http.Request) {
	req, ok := h.viewRequest(w, r)
	if !ok {
		return
	}

	res, err := h.service.View(r.Context(), sessionID(r), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, successList(res, res.Count))
}

// GetCounts handles GET /api/sessions/{sessionID}/counts/{field}?limit=
func (h *DashboardHandler) GetCounts(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intParam(w, r, "limit")
	if !ok {
		return
	}
	req := api.CountsRequest{Field: chi.URLParam(r, "field"), Limit: limit}
	if err := h.validator.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	counts, err := h.service.Counts(r.Context(), sessionID(r), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, successList(counts, len(counts)))
}

// GetYears handles GET /api/sessions/{sessionID}/years
func (h *DashboardHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.Years(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, successList(years, len(years)))
}

// GetDurationHistogram handles GET /api/sessions/{sessionID}/durations/histogram?bins=
func (h *DashboardHandler) GetDurationHistogram(w http.ResponseWriter, r *http.Request) {
	bins, ok := h.intParam(w, r, "bins")
	if !ok {
		return
	}
	req := api.HistogramRequest{Bins: bins}
	if err := h.validator.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	hist, err := h.service.DurationHistogram(r.Context(), sessionID(r), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, successList(hist, len(hist)))
}

// GetMalformedDates handles GET /api/sessions/{sessionID}/diagnostics/malformed-dates
func (h *DashboardHandler) GetMalformedDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.service.MalformedDates(r.Context(), sessionID(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, successList(dates, len(dates)))
}

// Export handles GET /api/sessions/{sessionID}/export.{format}
// The file is rendered into memory first so a failure still yields a problem response.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	view, ok := h.viewRequest(w, r)
	if !ok {
		return
	}
	req := api.ExportRequest{ViewRequest: view, Format: chi.URLParam(r, "format")}
	if err := h.validator.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch req.Format {
	case "xlsx":
		contentType = contentTypeXLSX
		err = h.service.ExportXLSX(r.Context(), sessionID(r), req.ViewRequest, &buf)
	default:
		contentType = contentTypeCSV
		err = h.service.ExportCSV(r.Context(), sessionID(r), req.ViewRequest, &buf)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filename := fmt.Sprintf("pko_missions_%s.%s", h.now().UTC().Format("20060102"), req.Format)
	h.logger.InfoContext(r.Context(), "export generated",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("format", req.Format),
		slog.Int("bytes", buf.Len()))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *DashboardHandler) viewRequest(w http.ResponseWriter, r *http.Request) (api.ViewRequest, bool) {
	q := r.URL.Query()
	req := api.ViewRequest{
		Start:   q.Get("start"),
		End:     q.Get("end"),
		Mission: q.Get("mission"),
	}
	if err := h.validator.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return req, false
	}
	return req, true
}

func (h *DashboardHandler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(name, fmt.Sprintf("%s must be a valid integer", name)))
		return 0, false
	}
	return n, true
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}

func success(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"status": "success",
		"data":   data,
	}
}

func successList(data interface{}, count int) map[string]interface{} {
	return map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  count,
	}
}
