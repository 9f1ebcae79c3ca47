package entry

import "errors"

var (
	// ErrNotFound is returned when an entry does not exist in the session or
	// has already expired. Callers cannot tell the two apart.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidArgument is returned by Add for empty identifiers, invalid
	// text, or a non-positive TTL.
	ErrInvalidArgument = errors.New("invalid argument")
)
