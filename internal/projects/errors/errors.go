package errors

import "errors"

var (
	ErrNotFound = errors.New("project not found")

	ErrInvalidID = errors.New("invalid project ID format")
)
