package documents

import "errors"

var (
	// ErrNotFound indicates the referenced document or stage record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an insert collided with an existing identifier.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates an ownership mismatch on a document operation.
	ErrForbidden = errors.New("access denied")
)
