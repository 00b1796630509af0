package slowpics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/metrics"
)

// Result of a publish. The first collection is the primary one.
type Result struct {
	Collections []Collection `json:"collections"`
	Chunked     bool         `json:"chunked,omitempty"`
}

// URLs of every published collection, primary first
func (r *Result) URLs() []string {
	urls := make([]string, len(r.Collections))
	for i, c := range r.Collections {
		urls[i] = c.URL
	}
	return urls
}

// Publish uploads the batch as one collection. If creating it fails with a
// retryable status after all attempts, the frames are split into chunks that
// are published as separate collections named "<name> (Part i/N)".
func (c *Client) Publish(ctx context.Context, b Batch) (*Result, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	total := b.ImageCount()
	done := 0
	progress := func() {
		done++
		if c.progress != nil {
			c.progress(done, total)
		}
	}

	c.log.Info("publishing comparison",
		zap.String("name", b.Name),
		zap.Int("tracks", len(b.Tracks)),
		zap.Int("frames", len(b.Frames)),
		zap.Int("images", total))

	col, err := c.publishOne(ctx, b, progress)
	if err == nil {
		return &Result{Collections: []Collection{*col}}, nil
	}
	if !shouldChunk(err) {
		return nil, err
	}

	chunks := planChunks(b.Frames, len(b.Tracks), c.cfg.ChunkTarget, c.cfg.MinChunks, c.cfg.MaxChunks)
	if len(chunks) == 0 {
		return nil, err
	}

	metrics.ChunkFallbacksTotal.Inc()
	c.log.Warn("whole batch upload failed, retrying in chunks",
		zap.Int("chunks", len(chunks)),
		zap.Error(err))

	res := &Result{Chunked: true}
	done = 0
	for i, frames := range chunks {
		part := b
		part.Name = fmt.Sprintf("%s (Part %d/%d)", b.Name, i+1, len(chunks))
		part.Frames = frames

		col, err := c.publishOne(ctx, part, progress)
		if err != nil {
			return nil, &ChunkError{Part: i + 1, Parts: len(chunks), Published: res.Collections, Err: err}
		}
		res.Collections = append(res.Collections, *col)
		c.log.Info("chunk published", zap.Int("part", i+1), zap.Int("parts", len(chunks)), zap.String("url", col.URL))
	}
	return res, nil
}

// shouldChunk reports a retryable failure of the collection create step
func shouldChunk(err error) bool {
	if errors.Is(err, ErrNoToken) || errors.Is(err, ErrValidation) {
		return false
	}
	var ue *UploadError
	if errors.As(err, &ue) {
		return false
	}
	var se *StatusError
	return errors.As(err, &se) && se.Stage == StageCreate && se.Retryable()
}

// planChunks splits frames into contiguous, nearly equal parts. The part count
// aims at target images per part, clamped to [minN, maxN] and to the frame count.
// Batches with fewer than minN frames are not split.
func planChunks(frames []int, tracks, target, minN, maxN int) [][]int {
	if tracks <= 0 || target <= 0 || len(frames) < minN {
		return nil
	}
	images := len(frames) * tracks
	n := (images + target - 1) / target
	n = max(minN, min(maxN, n))
	n = min(n, len(frames))
	if n <= 1 {
		return nil
	}

	chunks := make([][]int, 0, n)
	size, extra := len(frames)/n, len(frames)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, frames[start:end])
		start = end
	}
	return chunks
}
