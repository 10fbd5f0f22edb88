package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrBusinessRule   = errors.New("business rule violation")
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("could not validate credentials")
	ErrConflict       = errors.New("conflict")
)

var (
	ErrAlreadyClosed    = fmt.Errorf("trade is already closed: %w", ErrBusinessRule)
	ErrReopenNotAllowed = fmt.Errorf("a closed trade cannot be reopened: %w", ErrBusinessRule)
	ErrInvalidTimeline  = fmt.Errorf("exit date cannot be before entry date: %w", ErrValidation)
)

// Invalid builds a validation error for a single field.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// NotFound reports a missing entity without revealing whether it exists
// outside the requester's scope.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s with ID %s", ErrNotFound, entity, id)
}
