// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the operation conflicts with the current state of the entity.
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed input.
var ErrValidation = errors.New("validation failed")

// ErrPrecondition indicates a caller contract violation. Requests that hit it are
// aborted; it is never a per-request recoverable condition.
var ErrPrecondition = errors.New("precondition violated")

// ErrExternal indicates a failed call to an external capability (publish, notify,
// generate). Callers may retry with the same answer id.
var ErrExternal = errors.New("external capability failed")
