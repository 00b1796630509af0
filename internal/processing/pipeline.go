package processing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/pkg/compare"
)

// SmallCropThreshold is the size below which a crop is applied but flagged
const SmallCropThreshold = 100

// Loader loads sources; provider.Session and every provider satisfy it
type Loader interface {
	Load(ctx context.Context, path string) (provider.Clip, error)
}

// Apply builds the processed clip for one track.
// Geometry comes first (reference: resize then crop, candidate: crop only),
// then trim, then pad.
func Apply(ctx context.Context, log *zap.Logger, p provider.Provider, src provider.Clip, track compare.Track) (*Clip, error) {
	c := &Clip{
		Track:  track,
		p:      p,
		source: src,
		width:  src.Width(),
		height: src.Height(),
	}
	log = log.With(zap.String("track", track.Name))

	// Step 1: geometry
	if track.Resolution != nil {
		if track.Role == compare.RoleReference {
			c.ops = append(c.ops, op{kind: opResize, width: track.Resolution.Width, height: track.Resolution.Height})
			c.width, c.height = track.Resolution.Width, track.Resolution.Height
		} else {
			c.warn(log, fmt.Sprintf("resize to %s ignored for %s track", track.Resolution, track.Role))
		}
	}

	if track.Crop != nil && !track.Crop.IsZero() {
		insets, ok := c.resolveCrop(ctx, log, *track.Crop)
		if ok {
			c.applyCrop(log, insets)
		}
	}

	// Step 2: trim
	c.kept = src.FrameCount() - track.TrimStart - track.TrimEnd
	if c.kept <= 0 {
		return nil, fmt.Errorf("trim %d+%d removes all %d frames", track.TrimStart, track.TrimEnd, src.FrameCount())
	}

	// Step 3: pad is implicit in FrameCount and Frame

	log.Info("track processed",
		zap.Int("source_frames", src.FrameCount()),
		zap.Int("frames", c.FrameCount()),
		zap.Int("width", c.width),
		zap.Int("height", c.height))

	return c, nil
}

func (c *Clip) resolveCrop(ctx context.Context, log *zap.Logger, crop compare.Crop) (compare.Crop, bool) {
	if !crop.Auto {
		return crop, true
	}

	detected, err := c.p.DetectCrop(ctx, c.source)
	if errors.Is(err, provider.ErrUnsupported) {
		c.warn(log, fmt.Sprintf("auto crop not supported by %s, crop skipped", c.p.Name()))
		return compare.Crop{}, false
	}
	if err != nil {
		c.warn(log, fmt.Sprintf("auto crop detection failed, crop skipped: %v", err))
		return compare.Crop{}, false
	}
	if detected.IsZero() {
		log.Info("auto crop found no borders")
		return compare.Crop{}, false
	}

	// detection ran on source geometry; scale to the resized frame
	if c.width != c.source.Width() || c.height != c.source.Height() {
		sx := float64(c.width) / float64(c.source.Width())
		sy := float64(c.height) / float64(c.source.Height())
		detected = compare.Crop{
			Left:   int(math.Round(float64(detected.Left) * sx)),
			Right:  int(math.Round(float64(detected.Right) * sx)),
			Top:    int(math.Round(float64(detected.Top) * sy)),
			Bottom: int(math.Round(float64(detected.Bottom) * sy)),
		}
	}

	log.Info("auto crop detected", zap.Stringer("crop", detected))
	return detected, true
}

func (c *Clip) applyCrop(log *zap.Logger, crop compare.Crop) {
	w := c.width - crop.Left - crop.Right
	h := c.height - crop.Top - crop.Bottom

	if w <= 0 || h <= 0 {
		msg := fmt.Sprintf("crop %s would leave %dx%d from %dx%d, not applied", crop, w, h, c.width, c.height)
		c.Issues = append(c.Issues, Issue{Track: c.Track.Name, Severity: SeverityError, Message: msg})
		log.Error("invalid crop", zap.String("detail", msg))
		return
	}
	if w < SmallCropThreshold || h < SmallCropThreshold {
		c.warn(log, fmt.Sprintf("crop %s leaves a very small %dx%d frame", crop, w, h))
	}

	c.ops = append(c.ops, op{kind: opCrop, left: crop.Left, top: crop.Top, right: crop.Right, bottom: crop.Bottom})
	c.width, c.height = w, h
}

func (c *Clip) warn(log *zap.Logger, msg string) {
	c.Issues = append(c.Issues, Issue{Track: c.Track.Name, Severity: SeverityWarning, Message: msg})
	log.Warn(msg)
}

// Result of processing every track of a run
type Result struct {
	Clips  []*Clip
	Failed []*TrackError
}

// Issues collects the issues of every surviving clip
func (r *Result) Issues() []Issue {
	var issues []Issue
	for _, c := range r.Clips {
		issues = append(issues, c.Issues...)
	}
	return issues
}

// ApplyAll loads and processes each track in order. Failing tracks are
// dropped and reported; ErrNoTracks is returned when none survive.
func ApplyAll(ctx context.Context, log *zap.Logger, p provider.Provider, loader Loader, tracks []compare.Track) (*Result, error) {
	res := &Result{}

	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		src, err := loader.Load(ctx, t.Path)
		if err != nil {
			res.fail(log, t.Name, fmt.Errorf("load %s: %w", t.Path, err))
			continue
		}

		clip, err := Apply(ctx, log, p, src, t)
		if err != nil {
			res.fail(log, t.Name, err)
			continue
		}
		res.Clips = append(res.Clips, clip)
	}

	if len(res.Clips) == 0 {
		if len(res.Failed) == 0 {
			return res, ErrNoTracks
		}
		errs := make([]error, len(res.Failed))
		for i, f := range res.Failed {
			errs[i] = f
		}
		return res, fmt.Errorf("%w: %w", ErrNoTracks, errors.Join(errs...))
	}
	return res, nil
}

func (r *Result) fail(log *zap.Logger, track string, err error) {
	r.Failed = append(r.Failed, &TrackError{Track: track, Err: err})
	log.Error("track dropped", zap.String("track", track), zap.Error(err))
}
