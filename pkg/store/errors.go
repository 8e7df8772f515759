package store

import (
	"errors"

	"github.com/mschuler/nwebdav/pkg/dav"
)

// StoreError represents a domain error from store operations.
//
// Stores catch storage-layer faults at their boundary and translate them
// into this taxonomy, logging the original cause; a raw storage error never
// crosses the Store boundary. The recursive operation engine performs no
// translation of its own — it records whatever status an operation mapped
// to — so translation happens in exactly one place regardless of call
// depth.
type StoreError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable error description.
	Message string

	// Path is the resource path related to the error (if applicable).
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested resource doesn't exist.
	ErrNotFound ErrorCode = iota

	// ErrPreconditionFailed indicates the target exists and overwriting
	// was disallowed by the caller.
	ErrPreconditionFailed

	// ErrForbidden indicates the operation was denied by policy or
	// identity, or by the underlying storage's permissions.
	ErrForbidden

	// ErrConflict indicates a missing intermediate collection.
	ErrConflict

	// ErrInsufficientStorage indicates the backing storage is full.
	ErrInsufficientStorage

	// ErrInternal indicates an unexpected I/O or logic fault.
	ErrInternal

	// ErrInvalidOperation indicates a structurally disallowed request,
	// e.g. moving a collection as a single operation.
	ErrInvalidOperation

	// ErrSecurityViolation indicates a request path that escapes the
	// store root. Security violations are fatal to the request and are
	// never aggregated into a partial-failure collection.
	ErrSecurityViolation
)

// Code extracts the ErrorCode from an error if it is (or wraps) a
// StoreError.
func Code(err error) (ErrorCode, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// IsNotFound reports whether the error is a not-found StoreError.
func IsNotFound(err error) bool {
	code, ok := Code(err)
	return ok && code == ErrNotFound
}

// StatusOf maps an error to the protocol status it represents.
// A nil error maps to 200; errors outside the taxonomy map to 500.
func StatusOf(err error) dav.Status {
	if err == nil {
		return dav.StatusOK
	}
	code, ok := Code(err)
	if !ok {
		return dav.StatusInternalServerError
	}
	switch code {
	case ErrNotFound:
		return dav.StatusNotFound
	case ErrPreconditionFailed:
		return dav.StatusPreconditionFailed
	case ErrForbidden:
		return dav.StatusForbidden
	case ErrConflict:
		return dav.StatusConflict
	case ErrInsufficientStorage:
		return dav.StatusInsufficientStorage
	case ErrInvalidOperation:
		return dav.StatusMethodNotAllowed
	case ErrSecurityViolation:
		return dav.StatusForbidden
	default:
		return dav.StatusInternalServerError
	}
}
