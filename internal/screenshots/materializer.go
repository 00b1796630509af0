// Package screenshots writes the selected frames of every track to disk
package screenshots

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/pkg/compare"
)

// Source is a processed clip to screenshot
type Source interface {
	Name() string
	Role() compare.Role
	Frame(ctx context.Context, index int) (image.Image, error)
}

// Renderer annotates and encodes frames
type Renderer interface {
	OverlayText(frame image.Image, text string, pos image.Point) image.Image
	EncodePNG(frame image.Image, path string) error
}

// File is one written still
type File struct {
	Track string `json:"track"`
	Frame int    `json:"frame"`
	Path  string `json:"path"`
}

// Result of one materialization
type Result struct {
	Success  int      `json:"success"`
	Errors   int      `json:"errors"`
	Messages []string `json:"messages,omitempty"`
	Stopped  bool     `json:"stopped,omitempty"`
	Files    []File   `json:"files,omitempty"`
}

// Succeeded reports whether at least one still was written
func (r *Result) Succeeded() bool {
	return r.Success > 0
}

// ProgressFunc is called after every (frame, track) pair
type ProgressFunc func(done, total int)

// Materializer writes stills frame-major: every track for frame N before frame N+1
type Materializer struct {
	renderer Renderer
	log      *zap.Logger
	progress ProgressFunc
}

// Option configures a Materializer
type Option func(*Materializer)

// WithProgress reports progress after every pair
func WithProgress(fn ProgressFunc) Option {
	return func(m *Materializer) {
		m.progress = fn
	}
}

// New creates a Materializer
func New(renderer Renderer, log *zap.Logger, opts ...Option) *Materializer {
	m := &Materializer{
		renderer: renderer,
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OverlayText is the annotation burned into each still
func OverlayText(frame int, role compare.Role, name string) string {
	return fmt.Sprintf("Frame: %06d | %s | %s", frame, role, name)
}

// Run clears each track folder and writes one still per (frame, track).
// Pair failures are counted, not returned. Cancellation is checked between
// pairs and yields a stopped result that keeps what was already written.
func (m *Materializer) Run(ctx context.Context, layout Layout, sources []Source, frames []int) (*Result, error) {
	res := &Result{}

	for _, s := range sources {
		removed, err := layout.Clear(s.Name())
		if err != nil {
			return res, err
		}
		if removed > 0 {
			m.log.Info("cleared old screenshots", zap.String("track", s.Name()), zap.Int("files", removed))
		}
	}

	total := len(frames) * len(sources)
	done := 0

	m.log.Info("writing screenshots",
		zap.Int("frames", len(frames)),
		zap.Int("tracks", len(sources)),
		zap.Int("total", total),
		zap.String("output", layout.Root))

	for _, f := range frames {
		for _, s := range sources {
			if ctx.Err() != nil {
				res.Stopped = true
				res.Messages = append(res.Messages, fmt.Sprintf("stopped after %d of %d screenshots", done, total))
				m.log.Warn("screenshot generation stopped", zap.Int("done", done), zap.Int("total", total))
				return res, nil
			}

			// a pair already started runs to completion
			path := layout.Path(s.Name(), f)
			if err := m.write(context.WithoutCancel(ctx), s, f, path); err != nil {
				res.Errors++
				res.Messages = append(res.Messages, fmt.Sprintf("frame %d of %s: %v", f, s.Name(), err))
				m.log.Error("screenshot failed", zap.String("track", s.Name()), zap.Int("frame", f), zap.Error(err))
			} else {
				res.Success++
				res.Files = append(res.Files, File{Track: s.Name(), Frame: f, Path: path})
			}

			done++
			if m.progress != nil {
				m.progress(done, total)
			}
		}
	}

	m.log.Info("screenshots written", zap.Int("success", res.Success), zap.Int("errors", res.Errors))
	return res, nil
}

func (m *Materializer) write(ctx context.Context, s Source, frame int, path string) error {
	img, err := s.Frame(ctx, frame)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	img = m.renderer.OverlayText(img, OverlayText(frame, s.Role(), s.Name()), image.Pt(10, 10))
	if err := m.renderer.EncodePNG(img, path); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
