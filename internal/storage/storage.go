package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
)

// Reader provides read access to stored content
type Reader interface {
	// GetReader returns a reader for the content at the given key
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if content exists at the given key
	Exists(ctx context.Context, key string) (bool, error)
}

// Metadata contains storage object metadata
type Metadata struct {
	Size        int64
	ContentType string
	ETag        string
}

// Still is one written screenshot
type Still struct {
	RunID string
	Track string
	Frame int
	Path  string
}

// Key is the object key used by archivers: <run>/<track>/<file>
func (s Still) Key() string {
	return path.Join(s.RunID, s.Track, filepath.Base(s.Path))
}

// Archiver copies a written still into durable storage and returns its location
type Archiver interface {
	Archive(ctx context.Context, s Still) (string, error)
}
