package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
)

// Source reference prefixes understood by the Resolver
const (
	SchemeContent = "content:"
	SchemeS3      = "s3:"
)

// Resolver turns track references into local paths the decoders can open.
//
//	content:<uuid>       simple-content download
//	s3:<key>             object in the configured bucket
//	http(s)://...        plain download
//	anything else        local path, confined to the media root when one is set
//
// Remote media is downloaded into the directory passed to Localize. The
// caller owns that directory, so concurrent runs never share downloads.
type Resolver struct {
	log     *zap.Logger
	local   *FilesystemStorage
	readers map[string]Reader
}

// NewResolver creates a resolver. local may be nil to allow any local path.
func NewResolver(log *zap.Logger, local *FilesystemStorage) *Resolver {
	return &Resolver{
		log:     log,
		local:   local,
		readers: make(map[string]Reader),
	}
}

// WithContent enables content: references
func (r *Resolver) WithContent(reader Reader) *Resolver {
	r.readers[SchemeContent] = reader
	return r
}

// WithS3 enables s3: references
func (r *Resolver) WithS3(reader Reader) *Resolver {
	r.readers[SchemeS3] = reader
	return r
}

// WithHTTP enables http and https URLs
func (r *Resolver) WithHTTP(reader Reader) *Resolver {
	r.readers["http://"] = reader
	r.readers["https://"] = reader
	return r
}

// Localize returns a local path for ref, downloading remote media into dir
func (r *Resolver) Localize(ctx context.Context, dir, ref string) (string, error) {
	for prefix, reader := range r.readers {
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		key := ref
		if !strings.HasSuffix(prefix, "//") {
			key = strings.TrimPrefix(ref, prefix)
		}
		return r.download(ctx, reader, dir, key)
	}

	if strings.Contains(ref, "://") || strings.HasPrefix(ref, SchemeContent) || strings.HasPrefix(ref, SchemeS3) {
		return "", fmt.Errorf("%w: %s", ErrUnknownScheme, ref)
	}
	if r.local == nil {
		return ref, nil
	}
	return r.local.Path(ref)
}

func (r *Resolver) download(ctx context.Context, reader Reader, dir, key string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("no download directory for %s", key)
	}

	rc, err := reader.GetReader(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	name := path.Base(strings.SplitN(key, "?", 2)[0])
	if name == "." || name == "/" {
		name = "source"
	}
	f, err := os.CreateTemp(dir, "*-"+name)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, rc)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", key, err)
	}

	r.log.Info("source downloaded", zap.String("key", key), zap.String("path", f.Name()), zap.Int64("bytes", n))
	return f.Name(), nil
}
