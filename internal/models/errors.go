package models

import "errors"

// Business and coordination errors. Handlers map these to HTTP statuses with
// errors.Is; everything else is treated as an infrastructure failure.
var (
	// ErrInsufficientStock is a terminal business rejection: the requested
	// quantity exceeds available stock. Not retried automatically.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrLockTimeout means the per-product lock could not be acquired within
	// the configured deadline. Nothing has been mutated; the caller may
	// retry the whole request.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrReservationState signals a confirm or cancel against a smaller
	// reserved quantity than requested. Under single-writer discipline this
	// should never happen; it is surfaced for operator inspection rather
	// than retried.
	ErrReservationState = errors.New("reservation state violation")

	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order is not cancellable")
)
