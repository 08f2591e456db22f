package errors

import "errors"

var (
	ErrNotFound = errors.New("hold not found")

	ErrInvalidID = errors.New("invalid hold ID format")

	// ErrStatusConflict reports a lost conditional update on hold status,
	// e.g. converting a hold the sweeper already expired.
	ErrStatusConflict = errors.New("hold status changed concurrently")

	// ErrDuplicateActiveHold surfaces the partial unique index on plot_id:
	// a second active hold for the same plot was attempted.
	ErrDuplicateActiveHold = errors.New("plot already has an active hold")
)
