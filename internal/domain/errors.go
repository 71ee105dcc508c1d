// Package domain defines the error taxonomy shared by the permission
// resolver and the workflow engines. Handlers translate these into HTTP
// responses; engines never return raw pgx or gin errors.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input, rejected before any transition runs.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced entity that does not exist or does not
	// belong to the parent route entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness invariant violation.
	ErrConflict = errors.New("resource conflict")
	// ErrInvalidTransition marks an action attempted from a status that does
	// not permit it.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUnauthorized marks an actor lacking the required role, permission,
	// or ownership.
	ErrUnauthorized = errors.New("unauthorized")
)

// AuthorizationError carries the permission the actor was missing so the
// client can surface it.
type AuthorizationError struct {
	RequiredPermission string
}

func (e *AuthorizationError) Error() string {
	if e.RequiredPermission == "" {
		return ErrUnauthorized.Error()
	}
	return fmt.Sprintf("unauthorized: requires permission %s", e.RequiredPermission)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match.
func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// Unauthorizedf builds an AuthorizationError for a named permission.
func Unauthorizedf(permission string) error {
	return &AuthorizationError{RequiredPermission: permission}
}

// RequiredPermission extracts the missing permission from an error chain,
// or empty if the error is not an AuthorizationError.
func RequiredPermission(err error) string {
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return ae.RequiredPermission
	}
	return ""
}
