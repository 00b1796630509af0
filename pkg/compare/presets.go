package compare

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CropPresets are insets meant for 1920x1080 frames, in left, top, right, bottom order
var CropPresets = map[string]Crop{
	"tv-full":   {Left: 240, Top: 0, Right: 240, Bottom: 0},
	"tv-hd":     {Left: 240, Top: 138, Right: 240, Bottom: 138},
	"movie-235": {Left: 0, Top: 138, Right: 0, Bottom: 138},
	"movie-240": {Left: 0, Top: 144, Right: 0, Bottom: 144},
	"anime-480": {Left: 0, Top: 60, Right: 0, Bottom: 60},
}

// ResolutionPresets map short names to frame sizes
var ResolutionPresets = map[string]Resolution{
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
	"1440p": {Width: 2560, Height: 1440},
	"4k":    {Width: 3840, Height: 2160},
}

// ParseCrop accepts a preset name, "auto", "none" or "left,top,right,bottom".
// An empty string or "none" yields nil.
func ParseCrop(s string) (*Crop, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "none":
		return nil, nil
	case "auto":
		return &Crop{Auto: true}, nil
	}
	if preset, ok := CropPresets[s]; ok {
		return &preset, nil
	}
	values, err := splitInts(s, ",")
	if err != nil {
		return nil, fmt.Errorf("invalid crop %q: %w", s, err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("invalid crop %q: want left,top,right,bottom", s)
	}
	for _, v := range values {
		if v < 0 {
			return nil, fmt.Errorf("invalid crop %q: insets must not be negative", s)
		}
	}
	return &Crop{Left: values[0], Top: values[1], Right: values[2], Bottom: values[3]}, nil
}

// ParseResolution accepts a preset name, "none", "WxH" or "W,H"
func ParseResolution(s string) (*Resolution, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return nil, nil
	}
	if preset, ok := ResolutionPresets[s]; ok {
		return &preset, nil
	}
	sep := ","
	if strings.Contains(s, "x") {
		sep = "x"
	}
	values, err := splitInts(s, sep)
	if err != nil {
		return nil, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	if len(values) != 2 || values[0] <= 0 || values[1] <= 0 {
		return nil, fmt.Errorf("invalid resolution %q: want WIDTHxHEIGHT", s)
	}
	return &Resolution{Width: values[0], Height: values[1]}, nil
}

// ParseFrameList parses "10,20,30-35" into a sorted, duplicate-free list.
// Ranges are inclusive.
func ParseFrameList(s string) ([]int, error) {
	set := make(map[int]struct{})
	for _, spec := range strings.Split(s, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if i := strings.Index(spec, "-"); i > 0 {
			start, err := strconv.Atoi(strings.TrimSpace(spec[:i]))
			if err != nil {
				return nil, fmt.Errorf("invalid frame range %q", spec)
			}
			end, err := strconv.Atoi(strings.TrimSpace(spec[i+1:]))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid frame range %q", spec)
			}
			for f := start; f <= end; f++ {
				set[f] = struct{}{}
			}
			continue
		}
		f, err := strconv.Atoi(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid frame number %q", spec)
		}
		set[f] = struct{}{}
	}
	frames := make([]int, 0, len(set))
	for f := range set {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return frames, nil
}

// ParseFrameRange parses "start:end" and steps through it by interval, inclusive of end
func ParseFrameRange(s string, interval int) ([]int, error) {
	if interval <= 0 {
		interval = 1
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid frame range %q: want start:end", s)
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || start < 0 || end < start {
		return nil, fmt.Errorf("invalid frame range %q", s)
	}
	var frames []int
	for f := start; f <= end; f += interval {
		frames = append(frames, f)
	}
	return frames, nil
}

// DefaultNames generates display names when the user gave none.
// Source-vs-encode runs name the first track "Source" and the rest "EncodeN".
func DefaultNames(count int, sourceVsEncode bool) []string {
	names := make([]string, count)
	for i := range names {
		switch {
		case sourceVsEncode && i == 0:
			names[i] = "Source"
		case sourceVsEncode:
			names[i] = fmt.Sprintf("Encode%d", i)
		default:
			names[i] = fmt.Sprintf("Source%d", i+1)
		}
	}
	return names
}

func splitInts(s, sep string) ([]int, error) {
	parts := strings.Split(s, sep)
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
