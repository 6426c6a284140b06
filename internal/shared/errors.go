package shared

import "errors"

var (
	// ErrNotFound indicates the referenced item, order or request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a movement or reservation exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition rejects a status change outside the allowed table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingCancellationReason occurs when cancelling without a reason.
	ErrMissingCancellationReason = errors.New("cancellation reason required")
	// ErrUnauthorized is returned when the actor may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthenticated indicates a request without a valid session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation wraps malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals the target exists in a state that forbids the operation.
	ErrConflict = errors.New("conflict")
	// ErrInvariantViolation marks ledger corruption such as releasing more than was reserved.
	ErrInvariantViolation = errors.New("invariant violation")
)
