package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"pkoinsight/internal/dataprocessing"
	apierrors "pkoinsight/internal/errors"
)

// DefaultMaxBodySize caps JSON request bodies.
const DefaultMaxBodySize = 1 << 20

// Validator validates request structs by their `validate` tags.
type Validator struct {
	validate    *validator.Validate
	maxBodySize int64
	logger      *slog.Logger
}

// NewValidator creates a validator with the custom tags registered.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("mission", isMissionSelector)
	v.RegisterValidation("source", isSource)
	v.RegisterValidation("category", isCategoryField)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate:    v,
		maxBodySize: DefaultMaxBodySize,
		logger:      logger.With(slog.String("component", "validator")),
	}
}

// Struct validates v and returns a VALIDATION_FAILED APIError listing
// every failing field.
func (m *Validator) Struct(v interface{}) error {
	err := m.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// DecodeJSON reads a JSON body into dst and validates it. An empty body
// leaves dst untouched.
func (m *Validator) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body != nil && r.ContentLength != 0 {
		if r.ContentLength > m.maxBodySize {
			return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]interface{}{"max_size": m.maxBodySize, "size": r.ContentLength})
		}

		dec := json.NewDecoder(io.LimitReader(r.Body, m.maxBodySize))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			m.logger.DebugContext(r.Context(), "invalid JSON body",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())))
			return apierrors.New(http.StatusBadRequest, "INVALID_JSON",
				fmt.Sprintf("Request body contains invalid JSON: %v", err))
		}
	}
	return m.Struct(dst)
}

// ContentTypeValidator ensures requests with a body declare an allowed content type.
func ContentTypeValidator(errs ErrorResponder, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead ||
				r.Method == http.MethodDelete || r.Method == http.MethodOptions || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil {
				errs.HandleError(w, r, apierrors.New(http.StatusUnsupportedMediaType,
					"MISSING_CONTENT_TYPE", "Content-Type header is required"))
				return
			}
			for _, allowed := range contentTypes {
				if strings.EqualFold(mediaType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}
			errs.HandleError(w, r, apierrors.NewWithDetails(http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE", "Unsupported content type",
				map[string]interface{}{"content_type": mediaType, "allowed": contentTypes}))
		})
	}
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted as YYYY-MM-DD", field)
	case "mission":
		return fmt.Sprintf("%s must be a mission acronym or All", field)
	case "source":
		return fmt.Sprintf("%s must be an http(s) URL", field)
	case "category":
		return fmt.Sprintf("%s must be one of: location, department, acronym, active", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isMissionSelector accepts an acronym such as "UNMIK" or "MINURSO" and
// the "All" sentinel.
func isMissionSelector(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '.' || r == '/' || r == '_') {
			return false
		}
	}
	return true
}

// isCategoryField accepts whatever the counts parser accepts.
func isCategoryField(fl validator.FieldLevel) bool {
	_, err := dataprocessing.ParseCategoryField(fl.Field().String())
	return err == nil
}

func isSource(fl validator.FieldLevel) bool {
	s := strings.ToLower(fl.Field().String())
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://") || !strings.Contains(s, "://")
}
