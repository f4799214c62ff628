// Package apperr defines the sentinel errors shared across the engine.
package apperr

import "errors"

// Storage failure taxonomy. Only ErrRemoteUnavailable is eligible for a
// retry, and only on explicit user action; the rest are surfaced to the
// caller unchanged.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrIO                = errors.New("io failure")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrUnsupported       = errors.New("unsupported by backend")
)

// ErrInvalidMove rejects structure moves that would corrupt the
// hierarchy: cyclic reparent, cross-group reorder, unknown ids.
var ErrInvalidMove = errors.New("invalid structure move")
