// Package frames turns the user's frame intent into the absolute frame
// indexes screenshotted for every track.
package frames

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/pkg/compare"
)

// ErrNoFrames is returned when no frame is valid for every track
var ErrNoFrames = errors.New("no frames available")

// Track is what selection needs to know about a processed clip
type Track interface {
	Name() string
	FrameCount() int
	Offsets() (trimStart, padStart int)
}

// Selection is a sorted, duplicate-free set of frame indexes valid for every track
type Selection struct {
	Frames []int

	// Limit is the smallest processed frame count; every index is below it
	Limit int

	// Excluded lists requested indexes that were dropped
	Excluded []int

	Warnings []string
}

// Len returns the number of selected frames
func (s *Selection) Len() int { return len(s.Frames) }

// Select builds the frame selection for a run
func Select(log *zap.Logger, spec compare.FrameSpec, tracks []Track) (*Selection, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks", ErrNoFrames)
	}

	limit := tracks[0].FrameCount()
	for _, t := range tracks[1:] {
		limit = min(limit, t.FrameCount())
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: shortest track has no frames", ErrNoFrames)
	}

	sel := &Selection{Limit: limit}

	switch spec.Mode {
	case compare.FramesInterval:
		if spec.Interval <= 0 {
			return nil, fmt.Errorf("frame interval must be positive, got %d", spec.Interval)
		}
		for f := 0; f < limit; f += spec.Interval {
			sel.Frames = append(sel.Frames, f)
		}

	case compare.FramesList:
		sel.Frames, sel.Excluded = clip(spec.Frames, limit)
		if len(sel.Excluded) > 0 {
			sel.warn(log, fmt.Sprintf("%d frame(s) outside [0, %d) excluded", len(sel.Excluded), limit))
		}

	case compare.FramesPicked:
		sel.picked(log, spec.Frames, tracks)

	default:
		return nil, fmt.Errorf("unknown frame mode %q", spec.Mode)
	}

	sel.Frames = dedupe(sel.Frames)
	if len(sel.Frames) == 0 {
		return nil, fmt.Errorf("%w: none of the requested frames are below %d", ErrNoFrames, limit)
	}

	log.Info("frames selected",
		zap.String("mode", string(spec.Mode)),
		zap.Int("frames", len(sel.Frames)),
		zap.Int("limit", limit),
		zap.Int("excluded", len(sel.Excluded)))

	return sel, nil
}

// picked maps frames chosen on the unprocessed clip onto the processed one.
// The first track's trim and pad are used for every track.
func (s *Selection) picked(log *zap.Logger, picked []int, tracks []Track) {
	trimStart, padStart := tracks[0].Offsets()
	for _, t := range tracks[1:] {
		ts, ps := t.Offsets()
		if ts != trimStart || ps != padStart {
			s.warn(log, fmt.Sprintf("track %q uses trim %d/pad %d but picked frames are adjusted with %q trim %d/pad %d; frames may not line up",
				t.Name(), ts, ps, tracks[0].Name(), trimStart, padStart))
			break
		}
	}

	adjusted, dropped := Adjust(picked, trimStart, padStart)
	s.Excluded = append(s.Excluded, dropped...)
	if len(dropped) > 0 {
		s.warn(log, fmt.Sprintf("%d picked frame(s) fall inside the trimmed range and were dropped", len(dropped)))
	}

	kept, outside := clip(adjusted, s.Limit)
	s.Excluded = append(s.Excluded, outside...)
	if len(outside) > 0 {
		s.warn(log, fmt.Sprintf("%d picked frame(s) fall past the end of the shortest track", len(outside)))
	}

	if len(kept) == 0 {
		s.warn(log, "no picked frame survived adjustment, using frame 0")
		kept = []int{0}
	}
	s.Frames = kept
}

// Adjust maps frames picked on an unprocessed clip to the processed clip:
// f becomes f - trimStart + padStart, and frames before trimStart are dropped.
// When nothing survives the result is [0].
func Adjust(picked []int, trimStart, padStart int) (adjusted, dropped []int) {
	for _, f := range picked {
		if f < trimStart {
			dropped = append(dropped, f)
			continue
		}
		adjusted = append(adjusted, f-trimStart+padStart)
	}
	if len(adjusted) == 0 {
		adjusted = []int{0}
	}
	return dedupe(adjusted), dropped
}

func clip(frames []int, limit int) (kept, excluded []int) {
	for _, f := range frames {
		if f < 0 || f >= limit {
			excluded = append(excluded, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, excluded
}

func dedupe(frames []int) []int {
	if len(frames) == 0 {
		return frames
	}
	out := append([]int(nil), frames...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func (s *Selection) warn(log *zap.Logger, msg string) {
	s.Warnings = append(s.Warnings, msg)
	log.Warn(msg)
}
