package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredential indicates a failed password comparison.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrForbidden indicates the principal lacks the required role or secret.
	ErrForbidden = errors.New("forbidden")
	// ErrNotOwner indicates a mutation reserved for the record owner.
	ErrNotOwner = errors.New("not the owner")
	// ErrConcurrencyConflict indicates that the underlying storage rejected an
	// update because a newer version of the entity is already persisted.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries one or more field-level validation failures.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError with a plain message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// SyncFailure records a best-effort secondary write that did not succeed.
// The primary write it followed is already committed and is never rolled
// back; callers surface the failure instead.
type SyncFailure struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Reason     string `json:"reason"`
}
