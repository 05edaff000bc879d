package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithDetails(t *testing.T) {
	err := NewWithDetails(http.StatusBadRequest, "INVALID_PARAMETER", "bad bins", map[string]int{"bins": 0})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "INVALID_PARAMETER", err.ErrorCode)
	assert.Equal(t, "bad bins", err.Error())
	assert.Equal(t, map[string]int{"bins": 0}, err.Details)
}

func TestErrMissionNotFound(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrMissionNotFound.StatusCode)
	assert.Equal(t, "MISSION_NOT_FOUND", ErrMissionNotFound.ErrorCode)
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("start", "must be YYYY-MM-DD")

	details, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "start", details.Field)
	assert.Equal(t, "must be YYYY-MM-DD", details.Message)
}

func TestAPIError_As(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrMissionNotFound)

	var apiErr *APIError
	require.True(t, errors.As(wrapped, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusBadRequest, TypeInvalidRange, "Invalid Range", "start after end", "/api/x").
		WithExtension("error_code", "INVALID_RANGE")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeInvalidRange, got["type"])
	assert.Equal(t, float64(http.StatusBadRequest), got["status"])
	assert.Equal(t, "start after end", got["detail"])
	assert.Equal(t, "INVALID_RANGE", got["error_code"])
}

func TestProblemDetails_ExtensionsCannotOverrideStatus(t *testing.T) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "").
		WithExtension("status", 200)

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(http.StatusNotFound), got["status"])
	assert.NotContains(t, got, "detail")
}
