package storage

import "errors"

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.New("not found")

	// ErrTraversal is returned for keys that escape the storage root
	ErrTraversal = errors.New("invalid key: path traversal detected")

	// ErrUnknownScheme is returned for source references no reader handles
	ErrUnknownScheme = errors.New("unknown source scheme")
)
