package processing

import (
	"errors"
	"fmt"
)

// ErrNoTracks is returned when every track failed to load or process
var ErrNoTracks = errors.New("no tracks could be processed")

// TrackError is a failure confined to one track; the run continues without it
type TrackError struct {
	Track string
	Err   error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %q: %v", e.Track, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}
