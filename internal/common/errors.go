// Package common defines shared constants and sentinel errors used across
// the media lifecycle layers. Callers should use errors.Is to match these
// values; detailed errors wrap one of them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Client input errors: empty upload, unknown owner kind.
	ErrValidation = errors.New("validation error")

	// The referenced upload exists but can no longer be used; retrying
	// the same request will not help.
	ErrGone = errors.New("gone")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Commit-specific errors. Each wraps the sentinel describing its class.
var (
	ErrStagedUploadExpired = wrapKind(ErrGone, "staged upload expired")
	ErrOwnerKindMismatch   = wrapKind(ErrGone, "owner kind mismatch")
	ErrTempFileMissing     = wrapKind(ErrorNotFound, "temporary file missing")
	ErrUnknownOwnerKind    = wrapKind(ErrValidation, "unknown owner kind")
	ErrEmptyFile           = wrapKind(ErrValidation, "empty file")
	ErrInvalidExtension    = wrapKind(ErrValidation, "unsupported file extension")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func wrapKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
