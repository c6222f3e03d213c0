package engine

import "errors"

// Book error taxonomy. All are recoverable: a rejected submit or
// cancel leaves the book exactly as it was.
var (
	// ErrInvalidOrder rejects submissions with a non-positive price or
	// quantity, an unknown side, or a missing id.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrDuplicateID rejects a submission whose id is already resting.
	ErrDuplicateID = errors.New("duplicate order id")
	// ErrNotFound reports a cancel for an id that is not resting.
	ErrNotFound = errors.New("order not found")
	// ErrStopped reports a request issued after the engine shut down.
	ErrStopped = errors.New("engine stopped")
)
