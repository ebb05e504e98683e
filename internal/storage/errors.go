package storage

import (
	"errors"
	"fmt"

	"github.com/DukeRupert/mundo/internal/domain"
)

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty keys and path traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrAccessDenied is returned when the provider refuses the request.
	ErrAccessDenied = errors.New("access denied")
)

// StorageError wraps a provider failure with the operation and key.
type StorageError struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidKey returns true if the error indicates an invalid storage key.
func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

// DomainError translates a failure resolving a post's file. A missing
// object or a bad key means the post points at nothing (not found); anything
// else, access denied included, is the provider failing us (unavailable).
func DomainError(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err), IsInvalidKey(err):
		return domain.NotFound(op, "file", key)
	default:
		return domain.Unavailable(err, op, "O arquivo está temporariamente indisponível. Tente novamente em instantes.")
	}
}
