package slowpics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ImageSource resolves the still for a (track, frame) slot
type ImageSource interface {
	Resolve(track string, frame int) (string, error)
}

// Batch is what gets published: every track's still for every frame
type Batch struct {
	Name   string
	Tracks []string
	Frames []int
	Public bool
	Images ImageSource
}

// ImageCount is the number of stills in the batch
func (b Batch) ImageCount() int {
	return len(b.Tracks) * len(b.Frames)
}

// Validate rejects batches the service cannot accept
func (b Batch) Validate() error {
	switch {
	case strings.TrimSpace(b.Name) == "":
		return fmt.Errorf("%w: empty collection name", ErrValidation)
	case len(b.Tracks) == 0:
		return fmt.Errorf("%w: no sources", ErrValidation)
	case len(b.Tracks) > MaxTracks:
		return fmt.Errorf("%w: %d sources, at most %d allowed", ErrValidation, len(b.Tracks), MaxTracks)
	case len(b.Frames) == 0:
		return fmt.Errorf("%w: no frames", ErrValidation)
	case b.Images == nil:
		return fmt.Errorf("%w: no image source", ErrValidation)
	}
	return nil
}

// Collection is a published comparison
type Collection struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	UUID   string `json:"uuid"`
	URL    string `json:"url"`
	Frames []int  `json:"frames"`
}

type createResponse struct {
	CollectionUUID string     `json:"collectionUuid"`
	Key            string     `json:"key"`
	Images         [][]string `json:"images"`
}

// publishOne runs session, create and image upload for a single collection
func (c *Client) publishOne(ctx context.Context, b Batch, progress func()) (*Collection, error) {
	s, err := c.openSession(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.create(ctx, b)
	if err != nil {
		return nil, err
	}

	col := &Collection{
		Name:   b.Name,
		Key:    created.Key,
		UUID:   created.CollectionUUID,
		URL:    c.CollectionURL(created.Key),
		Frames: b.Frames,
	}
	c.log.Info("collection created",
		zap.String("name", b.Name),
		zap.String("key", col.Key),
		zap.Int("images", b.ImageCount()))

	first := true
	for slot, frame := range b.Frames {
		for i, track := range b.Tracks {
			if !first {
				if err := c.sleep(ctx, c.cfg.UploadDelay); err != nil {
					return nil, err
				}
			}
			first = false

			if err := s.uploadImage(ctx, b.Images, created.CollectionUUID, created.Images[slot][i], track, frame); err != nil {
				return nil, err
			}
			if progress != nil {
				progress()
			}
		}
	}

	return col, nil
}

// create posts the collection layout, retrying server errors and timeouts
func (s *session) create(ctx context.Context, b Batch) (*createResponse, error) {
	body, contentType, err := createForm(b, s.browserID)
	if err != nil {
		return nil, err
	}

	var out createResponse
	err = s.client.retry(ctx, StageCreate, (*StatusError).Retryable, func() error {
		status, respBody, err := s.post(ctx, StageCreate, "/upload/comparison", contentType, body)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return &StatusError{Stage: StageCreate, StatusCode: status, Body: string(respBody)}
		}
		if err := json.Unmarshal(respBody, &out); err != nil {
			return fmt.Errorf("invalid create response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Key == "" || out.CollectionUUID == "" {
		return nil, fmt.Errorf("create response is missing the collection key")
	}
	if len(out.Images) != len(b.Frames) {
		return nil, fmt.Errorf("create response has %d image slots, want %d", len(out.Images), len(b.Frames))
	}
	for i, slot := range out.Images {
		if len(slot) != len(b.Tracks) {
			return nil, fmt.Errorf("create response slot %d has %d images, want %d", i, len(slot), len(b.Tracks))
		}
	}
	return &out, nil
}

func createForm(b Batch, browserID string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"collectionName", b.Name},
		{"hentai", "false"},
		{"optimize-images", "true"},
		{"browserId", browserID},
		{"public", strconv.FormatBool(b.Public)},
	}
	for x, frame := range b.Frames {
		fields = append(fields, [2]string{fmt.Sprintf("comparisons[%d].name", x), strconv.Itoa(frame)})
		for i, track := range b.Tracks {
			fields = append(fields, [2]string{fmt.Sprintf("comparisons[%d].imageNames[%d]", x, i), track})
		}
	}

	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// uploadImage sends one still. Any failure ends the publish.
func (s *session) uploadImage(ctx context.Context, images ImageSource, collectionUUID, imageUUID, track string, frame int) error {
	path, err := images.Resolve(track, frame)
	if err != nil {
		return &UploadError{Track: track, Frame: frame, Err: err}
	}
	fail := func(err error) error {
		return &UploadError{File: path, Track: track, Frame: frame, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	body, contentType, err := imageForm(collectionUUID, imageUUID, s.browserID, filepath.Base(path), data)
	if err != nil {
		return fail(err)
	}

	status, respBody, err := s.post(ctx, StageImage, "/upload/image", contentType, body)
	if err != nil {
		return fail(err)
	}
	if status != http.StatusOK || string(respBody) != "OK" {
		return fail(&StatusError{Stage: StageImage, StatusCode: status, Body: string(respBody)})
	}
	return nil
}

func imageForm(collectionUUID, imageUUID, browserID, fileName string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("collectionUuid", collectionUUID); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("imageUuid", imageUUID); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	if err := w.WriteField("browserId", browserID); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
