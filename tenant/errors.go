package tenant

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoWorkspace is returned when a store operation is attempted without
	// a workspace id. This is an integration bug, never user input: it must
	// fail the invocation loudly rather than silently touch another tenant.
	ErrNoWorkspace = errors.New("no workspace in store call")

	// ErrEmptyKey is returned when a CRUD call passes an empty partition or
	// sort key.
	ErrEmptyKey = errors.New("empty storage key")

	// ErrScopedKey is returned when a CRUD call passes a key that already
	// carries a workspace prefix. Callers work with natural keys only; a
	// pre-scoped key could smuggle another workspace past the scope argument.
	ErrScopedKey = errors.New("storage key is already workspace-scoped")
)
