package services

import "errors"

// Domain error taxonomy. Controllers map these to HTTP statuses;
// every mutation path either fully commits or surfaces one of these
// with nothing written.
var (
	// ErrNotFound indicates a referenced user/post/comment/vote target does not exist.
	ErrNotFound = errors.New("target not found")
	// ErrForbidden indicates the actor lacks the role or ownership the operation requires.
	ErrForbidden = errors.New("operation not allowed")
	// ErrInvalidState indicates a structurally invalid request, e.g. a parent
	// comment that belongs to a different post.
	ErrInvalidState = errors.New("invalid state")
)
