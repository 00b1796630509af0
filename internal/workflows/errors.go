package workflows

import "errors"

var (
	// ErrWorkflowNotFound is returned when a workflow is not registered
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidRequest is returned when the request is invalid
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrNoScreenshots is returned when not a single still could be written
	ErrNoScreenshots = errors.New("no screenshots were written")

	// ErrNothingToUpload is returned by upload-only runs that find no stills
	ErrNothingToUpload = errors.New("no screenshots found to upload")

	// ErrNoPublisher is returned when an upload is requested without a publishing client
	ErrNoPublisher = errors.New("publishing is not configured")

	// ErrAsyncUnavailable is returned for queue and status calls without a DBOS runtime
	ErrAsyncUnavailable = errors.New("DBOS runtime not initialized")
)
