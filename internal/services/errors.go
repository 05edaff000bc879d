package services

import "errors"

// Dashboard service errors
var (
	ErrMissionNotFound = errors.New("mission not found")
	ErrInvalidField    = errors.New("invalid category field")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidSource   = errors.New("invalid source")
)
