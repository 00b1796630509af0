package provider

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Session owns the provider chosen for one run and every clip loaded through it.
// A session is used by one goroutine and never swaps its provider.
type Session struct {
	Provider
	Report Report

	clips  []Clip
	closed bool
}

// Open selects a provider and starts a session with it
func Open(ctx context.Context, log *zap.Logger, candidates ...Candidate) (*Session, error) {
	p, report, err := Select(ctx, log, candidates...)
	if err != nil {
		return &Session{Report: report}, err
	}
	return &Session{Provider: p, Report: report}, nil
}

// NewSession wraps an already chosen provider
func NewSession(p Provider) *Session {
	return &Session{
		Provider: p,
		Report: Report{
			Active:     p.Name(),
			Candidates: []Status{{Name: p.Name(), Available: true, Capabilities: p.Capabilities()}},
		},
	}
}

// Load loads a clip and tracks it so Close releases it
func (s *Session) Load(ctx context.Context, path string) (Clip, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	clip, err := s.Provider.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	s.clips = append(s.clips, clip)
	return clip, nil
}

// Close releases every clip loaded in the session
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, c := range s.clips {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.clips = nil
	return errors.Join(errs...)
}
