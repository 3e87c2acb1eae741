package app

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers missing or malformed request fields and
	// disallowed file extensions.
	ErrValidation = errors.New("invalid request")

	// ErrUnauthorized is returned when the session role or ownership does
	// not permit the operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
