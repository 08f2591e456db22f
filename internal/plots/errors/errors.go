package errors

import "errors"

var (
	ErrNotFound = errors.New("plot not found")

	ErrInvalidID = errors.New("invalid plot ID format")

	// ErrStatusConflict reports a lost compare-and-set: the stored
	// allocation status did not match the expected one.
	ErrStatusConflict = errors.New("plot allocation status changed concurrently")

	ErrDuplicatePlotNumber = errors.New("plot number already exists in project")
)
