package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	apperrors "pkoinsight/internal/errors"
	"pkoinsight/internal/infrastructure"
)

// ProblemFromStatus creates problem details for a status produced by the
// middleware chain itself.
func ProblemFromStatus(status int, detail string, r *http.Request) *apperrors.ProblemDetails {
	var title, problemType string

	switch status {
	case http.StatusBadRequest:
		title, problemType = "Bad Request", apperrors.TypeValidation
	case http.StatusNotFound:
		title, problemType = "Not Found", apperrors.TypeNotFound
	case http.StatusRequestEntityTooLarge:
		title, problemType = "Payload Too Large", apperrors.TypeValidation
	case http.StatusUnsupportedMediaType:
		title, problemType = "Unsupported Media Type", apperrors.TypeValidation
	case http.StatusTooManyRequests:
		title, problemType = "Too Many Requests", apperrors.TypeRateLimit
	case http.StatusServiceUnavailable:
		title, problemType = "Service Unavailable", apperrors.TypeServiceDown
	case http.StatusGatewayTimeout:
		title, problemType = "Request Timeout", apperrors.TypeTimeout
	default:
		title, problemType = http.StatusText(status), apperrors.TypeInternal
	}

	traceID := infrastructure.GetTraceID(r.Context())
	if traceID == "" {
		traceID = GetRequestID(r.Context())
	}
	return apperrors.NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("trace_id", traceID)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Render(w, r, ProblemFromStatus(status, detail, r))
}
