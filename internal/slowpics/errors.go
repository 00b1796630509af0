package slowpics

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoToken is returned when the session never yields an XSRF token
	ErrNoToken = errors.New("could not obtain slow.pics session token")

	// ErrValidation is returned for batches the service would reject
	ErrValidation = errors.New("invalid collection")
)

// Stage names a step of the publishing protocol
type Stage string

// Stage constants
const (
	StageSession Stage = "session"
	StageCreate  Stage = "create"
	StageImage   Stage = "image"
)

// StatusError is a failed request: a non-success response or a transport failure
type StatusError struct {
	Stage      Stage
	StatusCode int
	Body       string
	Timeout    bool
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Stage, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s request failed with status %d: %s", e.Stage, e.StatusCode, body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Retryable reports timeouts, rate limiting and server errors
func (e *StatusError) Retryable() bool {
	return e.Timeout || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// UploadError names the still an image upload died on
type UploadError struct {
	File  string
	Track string
	Frame int
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s (track %q, frame %d) failed: %v", e.File, e.Track, e.Frame, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ChunkError is a failed chunked upload. Published holds the chunks that
// made it so they can be inspected or deleted.
type ChunkError struct {
	Part      int
	Parts     int
	Published []Collection
	Err       error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d failed after %d published: %v", e.Part, e.Parts, len(e.Published), e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// URLs of the chunks that were published before the failure
func (e *ChunkError) URLs() []string {
	urls := make([]string, len(e.Published))
	for i, c := range e.Published {
		urls[i] = c.URL
	}
	return urls
}
