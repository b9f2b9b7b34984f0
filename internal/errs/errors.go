// Package errs provides the unified error type used across all of tablegate.
//
// Every subsystem (database drivers, schema introspection, the query builder,
// snapshot stores, …) wraps its native errors into *errs.Error before
// returning them to callers. Callers use the Is* predicates to handle errors
// without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In a handler, check the error kind:
//	if errs.IsUnsafeDelete(err) {
//	    http.Error(w, "refusing to delete without a filter", http.StatusUnprocessableEntity)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, SQLite, MinIO, Redis) map their native
// errors to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, unknown table or connection
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConflict                 // unique or foreign key violation

	ErrKindInvalidIdentifier     // identifier fails the identifier pattern
	ErrKindForbiddenIdentifier   // identifier names a system catalog
	ErrKindNoPrimaryKey          // key-based operation on a table without a primary key
	ErrKindNoValidColumns        // write payload had no known columns
	ErrKindUnsafeDelete          // delete-by-filter without any filter
	ErrKindNoRelationship        // no FK path between two tables
	ErrKindAmbiguousRelationship // several FK paths and no column to pick one
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConflict:
		return "conflict"
	case ErrKindInvalidIdentifier:
		return "invalid_identifier"
	case ErrKindForbiddenIdentifier:
		return "forbidden_identifier"
	case ErrKindNoPrimaryKey:
		return "no_primary_key"
	case ErrKindNoValidColumns:
		return "no_valid_columns"
	case ErrKindUnsafeDelete:
		return "unsafe_delete"
	case ErrKindNoRelationship:
		return "no_relationship"
	case ErrKindAmbiguousRelationship:
		return "ambiguous_relationship"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all tablegate subsystems.
// Drivers produce it; callers inspect it via the Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, missing object, unknown table or connection, …).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConflict reports whether err is a constraint violation.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

func IsInvalidIdentifier(err error) bool {
	return KindOf(err) == ErrKindInvalidIdentifier
}

func IsForbiddenIdentifier(err error) bool {
	return KindOf(err) == ErrKindForbiddenIdentifier
}

func IsNoPrimaryKey(err error) bool {
	return KindOf(err) == ErrKindNoPrimaryKey
}

func IsNoValidColumns(err error) bool {
	return KindOf(err) == ErrKindNoValidColumns
}

// IsUnsafeDelete reports whether a delete-by-filter was refused because it
// carried no filter at all.
func IsUnsafeDelete(err error) bool {
	return KindOf(err) == ErrKindUnsafeDelete
}

func IsNoRelationship(err error) bool {
	return KindOf(err) == ErrKindNoRelationship
}

func IsAmbiguousRelationship(err error) bool {
	return KindOf(err) == ErrKindAmbiguousRelationship
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
