package compare

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Role decides the geometry order applied to a track
type Role string

// Role constants
const (
	RoleReference Role = "reference"
	RoleCandidate Role = "candidate"
)

// Crop describes pixel insets removed from each edge, or a request for
// automatic detection when Auto is set.
type Crop struct {
	Auto   bool `json:"auto,omitempty"`
	Left   int  `json:"left"`
	Top    int  `json:"top"`
	Right  int  `json:"right"`
	Bottom int  `json:"bottom"`
}

// IsZero reports whether the crop removes nothing
func (c Crop) IsZero() bool {
	return !c.Auto && c.Left == 0 && c.Top == 0 && c.Right == 0 && c.Bottom == 0
}

func (c Crop) String() string {
	if c.Auto {
		return "auto"
	}
	return fmt.Sprintf("L=%d,T=%d,R=%d,B=%d", c.Left, c.Top, c.Right, c.Bottom)
}

// Resolution is a target frame size
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Track is one input video of a comparison run
type Track struct {
	Path       string      `json:"path"`
	Name       string      `json:"name"`
	Role       Role        `json:"role"`
	TrimStart  int         `json:"trim_start,omitempty"`
	TrimEnd    int         `json:"trim_end,omitempty"`
	PadStart   int         `json:"pad_start,omitempty"`
	PadEnd     int         `json:"pad_end,omitempty"`
	Crop       *Crop       `json:"crop,omitempty"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// FrameMode selects how the frame set is built
type FrameMode string

// FrameMode constants
const (
	FramesInterval FrameMode = "interval"
	FramesList     FrameMode = "list"
	FramesPicked   FrameMode = "picked"
)

// FrameSpec is the user's frame intent
type FrameSpec struct {
	Mode     FrameMode `json:"mode"`
	Interval int       `json:"interval,omitempty"`
	Frames   []int     `json:"frames,omitempty"`
}

// UploadOptions controls publishing to slow.pics
type UploadOptions struct {
	ShowName string `json:"show_name"`
	Season   int    `json:"season,omitempty"`
	Public   bool   `json:"public"`
}

// Job names what a request runs
type Job string

// Job constants
const (
	// JobCompare extracts stills from every track and optionally publishes them
	JobCompare Job = "compare"
	// JobUpload publishes stills already on disk under OutputDir
	JobUpload Job = "upload"
)

// Request represents a request to run a comparison
type Request struct {
	Job       Job            `json:"job,omitempty"`
	Tracks    []Track        `json:"tracks"`
	Frames    FrameSpec      `json:"frames"`
	OutputDir string         `json:"output_dir,omitempty"`
	Upload    *UploadOptions `json:"upload,omitempty"`
}

// Response represents the response from triggering a comparison
type Response struct {
	RunID       string   `json:"run_id"`
	Status      string   `json:"status,omitempty"`
	Screenshots int      `json:"screenshots"`
	Errors      int      `json:"errors"`
	URLs        []string `json:"urls,omitempty"`
	Messages    []string `json:"messages,omitempty"`
}

// JobOrDefault returns the job, JobCompare when unset
func (r *Request) JobOrDefault() Job {
	if r.Job == "" {
		return JobCompare
	}
	return r.Job
}

// Validate checks the request before any decode work starts
func (r *Request) Validate() error {
	switch r.JobOrDefault() {
	case JobCompare:
	case JobUpload:
		if r.Upload == nil || strings.TrimSpace(r.Upload.ShowName) == "" {
			return fmt.Errorf("upload requires a show name")
		}
		return nil
	default:
		return fmt.Errorf("unknown job %q", r.Job)
	}

	if len(r.Tracks) == 0 {
		return fmt.Errorf("at least one track is required")
	}
	seen := make(map[string]bool, len(r.Tracks))
	for i, t := range r.Tracks {
		if t.Path == "" {
			return fmt.Errorf("track %d: path is required", i+1)
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("track %d: name is required", i+1)
		}
		if strings.ContainsAny(t.Name, `/\`) || filepath.Base(t.Name) != t.Name {
			return fmt.Errorf("track %q: name must not contain path separators", t.Name)
		}
		if t.Name == "." || t.Name == ".." {
			return fmt.Errorf("track %q: name must be a folder name", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("track name %q is used more than once", t.Name)
		}
		seen[t.Name] = true
		if t.Role != RoleReference && t.Role != RoleCandidate {
			return fmt.Errorf("track %q: unknown role %q", t.Name, t.Role)
		}
		if t.TrimStart < 0 || t.TrimEnd < 0 || t.PadStart < 0 || t.PadEnd < 0 {
			return fmt.Errorf("track %q: trim and pad must not be negative", t.Name)
		}
		if t.Resolution != nil && (t.Resolution.Width <= 0 || t.Resolution.Height <= 0) {
			return fmt.Errorf("track %q: invalid resolution %s", t.Name, t.Resolution)
		}
	}
	switch r.Frames.Mode {
	case FramesInterval:
		if r.Frames.Interval <= 0 {
			return fmt.Errorf("frame interval must be positive")
		}
	case FramesList, FramesPicked:
		if len(r.Frames.Frames) == 0 {
			return fmt.Errorf("%s mode needs at least one frame", r.Frames.Mode)
		}
	default:
		return fmt.Errorf("unknown frame mode %q", r.Frames.Mode)
	}
	if r.Upload != nil && strings.TrimSpace(r.Upload.ShowName) == "" {
		return fmt.Errorf("upload requires a show name")
	}
	return nil
}

// CollectionName builds "<show> [SNN] <a> vs <b> ..." for the given track names
func CollectionName(show string, season int, names []string) string {
	parts := []string{strings.TrimSpace(show)}
	if season > 0 {
		parts = append(parts, fmt.Sprintf("S%02d", season))
	}
	parts = append(parts, strings.Join(names, " vs "))
	return strings.Join(parts, " ")
}

// RunStatus is the state of an enqueued run. The screenshot counts and
// messages are filled once the run has finished.
type RunStatus struct {
	RunID       string    `json:"run_id"`
	State       string    `json:"state"`
	Workflow    string    `json:"workflow,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Screenshots int       `json:"screenshots"`
	Errors      int       `json:"errors"`
	URLs        []string  `json:"urls,omitempty"`
	Messages    []string  `json:"messages,omitempty"`
}
