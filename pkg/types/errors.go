package types

import "errors"

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Operation error taxonomy. Concrete failures wrap one of these sentinels,
// so callers classify with errors.Is and still see the full cause chain.
var (
	// ErrValidation marks an invalid identifier or an invalid primary-key
	// specification. Raised before any SQL reaches the engine.
	ErrValidation = errors.New("validation failed")

	// ErrSchema marks a missing table, field, or relation, a failed
	// reconstruction step, or inconsistent catalog state.
	ErrSchema = errors.New("schema error")

	// ErrConstraint marks an engine-level constraint failure on a user
	// table. Duplicate values absorbed by insert-or-ignore paths are not
	// reported through this sentinel.
	ErrConstraint = errors.New("constraint violation")

	// ErrNotFound marks an operation addressed at a specific record that
	// does not exist. Point lookups that treat absence as a value return
	// nil instead.
	ErrNotFound = errors.New("record not found")
)
