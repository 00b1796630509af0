package processing

import (
	"context"
	"fmt"
	"image"

	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/pkg/compare"
)

// Severity of a processing issue
type Severity string

// Severity constants
const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is something the pipeline noticed but did not fail the track for
type Issue struct {
	Track    string   `json:"track"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Track, i.Message)
}

type opKind int

const (
	opResize opKind = iota
	opCrop
)

type op struct {
	kind                     opKind
	width, height            int
	left, top, right, bottom int
}

// Clip is a source with geometry, trim and pad applied lazily.
// Frames are decoded only when Frame is called.
type Clip struct {
	Track  compare.Track
	Issues []Issue

	p      provider.Provider
	source provider.Clip
	ops    []op

	width  int
	height int

	// frames kept from the source after trimming
	kept int
}

// Name is the track's display name
func (c *Clip) Name() string { return c.Track.Name }

// Role is the track's role
func (c *Clip) Role() compare.Role { return c.Track.Role }

// Width of every frame after geometry operations
func (c *Clip) Width() int { return c.width }

// Height of every frame after geometry operations
func (c *Clip) Height() int { return c.height }

// FrameCount is pad start + kept source frames + pad end
func (c *Clip) FrameCount() int {
	return c.Track.PadStart + c.kept + c.Track.PadEnd
}

// Offsets returns the trim start and pad start used to map picked frames
func (c *Clip) Offsets() (trimStart, padStart int) {
	return c.Track.TrimStart, c.Track.PadStart
}

// SourceFrameCount is the frame count of the unprocessed source
func (c *Clip) SourceFrameCount() int {
	return c.source.FrameCount()
}

// SourceIndex maps a processed index to the source frame it shows.
// It returns false for padding frames.
func (c *Clip) SourceIndex(index int) (int, bool) {
	rel := index - c.Track.PadStart
	if rel < 0 || rel >= c.kept {
		return 0, false
	}
	return rel + c.Track.TrimStart, true
}

// Frame renders one processed frame
func (c *Clip) Frame(ctx context.Context, index int) (image.Image, error) {
	if index < 0 || index >= c.FrameCount() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", provider.ErrFrameOutOfRange, index, c.FrameCount())
	}

	src, ok := c.SourceIndex(index)
	if !ok {
		return c.p.Blank(c.width, c.height), nil
	}

	frame, err := c.p.GetFrame(ctx, c.source, src)
	if err != nil {
		return nil, err
	}

	for _, o := range c.ops {
		switch o.kind {
		case opResize:
			frame = c.p.Resize(frame, o.width, o.height)
		case opCrop:
			frame, err = c.p.Crop(frame, o.left, o.top, o.right, o.bottom)
			if err != nil {
				return nil, fmt.Errorf("crop frame %d: %w", index, err)
			}
		}
	}
	return frame, nil
}
