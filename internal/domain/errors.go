package domain

import "errors"

var (
	// ErrInvalidArgument indicates a request that cannot be processed as given.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("not found")
)
