package provider

import "errors"

var (
	// ErrNoProvider is returned when no decode engine is usable
	ErrNoProvider = errors.New("no video processing provider available")

	// ErrUnsupported is returned by optional operations an engine lacks
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrFrameOutOfRange is returned when a frame index is outside the clip
	ErrFrameOutOfRange = errors.New("frame index out of range")

	// ErrSessionClosed is returned when a closed session is used
	ErrSessionClosed = errors.New("provider session closed")
)
