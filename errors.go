package stashbox

import "errors"

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when a token is missing, unknown or revoked
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorage is returned when reading or writing object bytes fails
	ErrStorage = errors.New("storage failure")
	// ErrTooLarge is returned when an upload exceeds the configured size limit
	ErrTooLarge = errors.New("upload too large")
)
