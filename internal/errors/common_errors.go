package errors

import (
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSourceUnavailable ErrorType = "SOURCE_UNAVAILABLE"
	ErrTypeInvalidRange      ErrorType = "INVALID_RANGE"
	ErrTypeParsing           ErrorType = "PARSING"
	ErrTypeStorage           ErrorType = "STORAGE"
	ErrTypeValidation        ErrorType = "VALIDATION"
	ErrTypeNotFound          ErrorType = "NOT_FOUND"
	ErrTypeConfig            ErrorType = "CONFIG"
	ErrTypeCapacity          ErrorType = "CAPACITY"
)

// Sentinels usable with errors.Is; matching is by ErrorType.
var (
	ErrSourceUnavailable = &AppError{Type: ErrTypeSourceUnavailable, Message: "data source unavailable"}
	ErrInvalidRange      = &AppError{Type: ErrTypeInvalidRange, Message: "range start is after range end"}
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError target of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewSourceUnavailableError is returned when the dataset can not be fetched or decoded.
func NewSourceUnavailableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSourceUnavailable, message, cause)
}

// NewInvalidRangeError is returned for a filter query whose start is after its end.
func NewInvalidRangeError(message string) *AppError {
	return NewAppError(ErrTypeInvalidRange, message, nil)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewCapacityError is returned when a resource limit such as the session cap is reached.
func NewCapacityError(message string) *AppError {
	return NewAppError(ErrTypeCapacity, message, nil)
}
