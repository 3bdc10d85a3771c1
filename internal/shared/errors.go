package shared

import "errors"

// Error kinds domain packages wrap so transports can classify failures
// without importing every domain.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the resource state forbids the operation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthenticated indicates no actor is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
)
