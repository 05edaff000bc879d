package middleware

import "net/http"

// ErrorResponder writes an error as an HTTP problem response.
// *errors.ErrorHandler satisfies it.
type ErrorResponder interface {
	HandleError(w http.ResponseWriter, r *http.Request, err error)
}
