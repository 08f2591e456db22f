package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusConflict reports a lost conditional status transition.
	ErrStatusConflict = errors.New("booking status changed concurrently")

	// ErrDuplicateHoldBooking surfaces the unique index on hold_id: the hold
	// was already converted into a booking.
	ErrDuplicateHoldBooking = errors.New("hold already has a booking")
)
