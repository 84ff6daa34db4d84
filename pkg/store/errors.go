package store

import (
	"errors"
)

// Code is a machine-readable failure class reported by the store.
type Code string

const (
	CodeNotFound        Code = "not_found"
	CodeUniqueViolation Code = "unique_violation"
	CodeUnauthorized    Code = "unauthorized"
	CodeInternal        Code = "internal"
)

// Error is a structured store failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code)
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsUniqueViolation reports whether err carries CodeUniqueViolation. Unique
// violations are validation conflicts: never retried, surfaced to the caller.
func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

// IsTransient reports whether err looks recoverable: anything that is not a
// structured store error (network, timeout) or that the store classed as
// internal. Transient failures are retried with backoff while stale cache is
// served.
func IsTransient(err error) bool {
	var se *Error
	if !errors.As(err, &se) {
		return true
	}
	return se.Code == CodeInternal
}

func hasCode(err error, code Code) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
