package workflows

import (
	"github.com/tendant/framecompare/internal/processing"
	"github.com/tendant/framecompare/internal/screenshots"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/pkg/compare"
)

// Status is the outcome of a run
type Status string

// Status constants
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Summary aggregates everything a run reports back
type Summary struct {
	RunID     string      `json:"run_id"`
	Job       compare.Job `json:"job"`
	Status    Status      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Provider  string      `json:"provider,omitempty"`
	OutputDir string      `json:"output_dir"`

	Tracks  []string           `json:"tracks,omitempty"`
	Dropped []string           `json:"dropped,omitempty"`
	Issues  []processing.Issue `json:"issues,omitempty"`

	Frames   []int    `json:"frames,omitempty"`
	Excluded []int    `json:"excluded,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	Screenshots *screenshots.Result `json:"screenshots,omitempty"`
	Archived    int                 `json:"archived,omitempty"`

	Collections []slowpics.Collection `json:"collections,omitempty"`
	Chunked     bool                  `json:"chunked,omitempty"`
}

// URLs of the published collections, primary first
func (s *Summary) URLs() []string {
	urls := make([]string, len(s.Collections))
	for i, c := range s.Collections {
		urls[i] = c.URL
	}
	return urls
}

// Response is the public form returned by the worker API and client
func (s *Summary) Response() compare.Response {
	resp := compare.Response{
		RunID:  s.RunID,
		Status: string(s.Status),
		URLs:   s.URLs(),
	}
	if s.Screenshots != nil {
		resp.Screenshots = s.Screenshots.Success
		resp.Errors = s.Screenshots.Errors
		resp.Messages = append(resp.Messages, s.Screenshots.Messages...)
	}
	for _, i := range s.Issues {
		resp.Messages = append(resp.Messages, i.String())
	}
	resp.Messages = append(resp.Messages, s.Warnings...)
	if s.Error != "" {
		resp.Messages = append(resp.Messages, s.Error)
	}
	return resp
}

func (s *Summary) addProcessing(res *processing.Result) {
	for _, c := range res.Clips {
		s.Tracks = append(s.Tracks, c.Name())
	}
	for _, f := range res.Failed {
		s.Dropped = append(s.Dropped, f.Track)
	}
	s.Issues = append(s.Issues, res.Issues()...)
}
