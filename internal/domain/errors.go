package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates that the request carried no credential.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidToken indicates a malformed token or a signature that does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a structurally valid token whose expiry has passed.
	ErrExpiredToken = errors.New("token expired")
	// ErrSubjectNotFound is returned when a verified subject no longer resolves to a user.
	ErrSubjectNotFound = errors.New("user not found")
	// ErrPermissionDenied is returned when the subject may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("already exists")
)

// ValidationError describes rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with the kind of record that was missing.
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}
