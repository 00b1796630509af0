package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

// Default owner and tenant for stills archived by the tool
var (
	DefaultOwnerID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	DefaultTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// ContentStore archives stills into a simple-content service and reads
// source media back out of it by content ID
type ContentStore struct {
	service  simplecontent.Service
	ownerID  uuid.UUID
	tenantID uuid.UUID
}

// NewContentStore creates a store on top of a simple-content service
func NewContentStore(service simplecontent.Service) *ContentStore {
	return &ContentStore{
		service:  service,
		ownerID:  DefaultOwnerID,
		tenantID: DefaultTenantID,
	}
}

// Archive uploads the still and returns the new content ID
func (cs *ContentStore) Archive(ctx context.Context, s Still) (string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open still: %w", err)
	}
	defer f.Close()

	content, err := cs.service.UploadContent(ctx, simplecontent.UploadContentRequest{
		OwnerID:      cs.ownerID,
		TenantID:     cs.tenantID,
		Name:         fmt.Sprintf("%s frame %d", s.Track, s.Frame),
		DocumentType: "image/png",
		Reader:       f,
		FileName:     filepath.Base(s.Path),
		Tags:         []string{"screenshot", "run:" + s.RunID, "track:" + s.Track, "frame:" + strconv.Itoa(s.Frame)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload still: %w", err)
	}

	return content.ID.String(), nil
}

// GetReader returns a reader for content by content ID
func (cs *ContentStore) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("invalid content ID: %w", err)
	}

	reader, err := cs.service.DownloadContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to download content: %w", err)
	}

	return reader, nil
}

// Exists checks if content exists by content ID
func (cs *ContentStore) Exists(ctx context.Context, key string) (bool, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return false, fmt.Errorf("invalid content ID: %w", err)
	}

	// any lookup failure is treated as missing
	if _, err := cs.service.GetContent(ctx, id); err != nil {
		return false, nil
	}
	return true, nil
}
