package permcore

import "errors"

// Custom errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("unauthenticated")

	// ErrStoreUnavailable wraps failures of the permission store or role
	// directory. Callers must surface it as an internal error, never as a
	// denial: "store unreachable" and "access denied" are different outcomes.
	ErrStoreUnavailable = errors.New("permission store unavailable")
)
