package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeInvalidRange,
				Message: "start 2020-02-01 is after end 2020-01-01",
			},
			wantMessage: "[INVALID_RANGE] start 2020-02-01 is after end 2020-01-01",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeSourceUnavailable,
				Message: "fetch failed",
				Cause:   fmt.Errorf("connection refused"),
			},
			wantMessage: "[SOURCE_UNAVAILABLE] fetch failed: connection refused",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type: ErrTypeValidation,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_IsMatchesByType(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("open session: %w", NewSourceUnavailableError("fetch failed", cause))

	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.False(t, errors.Is(err, ErrInvalidRange))
	assert.True(t, errors.Is(err, cause), "cause must stay reachable")

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeSourceUnavailable, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeNotFound, Message: "session not found"}
	err.WithContext("session_id", "abc").WithContext("attempt", 2)

	require.NotNil(t, err.Context)
	assert.Equal(t, "abc", err.Context["session_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
		wantErr  error
	}{
		{"source unavailable", NewSourceUnavailableError("fetch", cause), ErrTypeSourceUnavailable, "fetch", cause},
		{"invalid range", NewInvalidRangeError("bad range"), ErrTypeInvalidRange, "bad range", nil},
		{"parsing", NewParsingError("parse", cause), ErrTypeParsing, "parse", cause},
		{"storage", NewStorageError("write", cause), ErrTypeStorage, "write", cause},
		{"validation", NewAppError(ErrTypeValidation, "invalid", nil), ErrTypeValidation, "invalid", nil},
		{"not found", NewNotFoundError("mission UNMIK"), ErrTypeNotFound, "mission UNMIK not found", nil},
		{"config", NewConfigError("bad port", cause), ErrTypeConfig, "bad port", cause},
		{"capacity", NewCapacityError("too many sessions"), ErrTypeCapacity, "too many sessions", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.Equal(t, tt.wantErr, tt.err.Unwrap())
			assert.NotNil(t, tt.err.Context)
		})
	}
}
