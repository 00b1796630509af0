package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Candidate is one decode engine in preference order
type Candidate struct {
	Name string

	// Probe checks the runtime environment (binaries, libraries) without side effects
	Probe func(ctx context.Context) error

	// New builds the provider once its probe has passed
	New func() (Provider, error)
}

// Status describes one candidate in a capability report
type Status struct {
	Name         string       `json:"name"`
	Available    bool         `json:"available"`
	Reason       string       `json:"reason,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Report lists every candidate checked during selection
type Report struct {
	Active     string   `json:"active"`
	Candidates []Status `json:"candidates"`
}

func (r Report) String() string {
	var b strings.Builder
	for _, c := range r.Candidates {
		mark := "unavailable"
		if c.Available {
			mark = "available"
		}
		if c.Name == r.Active {
			mark = "active"
		}
		fmt.Fprintf(&b, "%-10s %-12s", c.Name, mark)
		if len(c.Capabilities) > 0 {
			caps := make([]string, len(c.Capabilities))
			for i, cp := range c.Capabilities {
				caps[i] = string(cp)
			}
			fmt.Fprintf(&b, " %s", strings.Join(caps, ","))
		}
		if c.Reason != "" {
			fmt.Fprintf(&b, " (%s)", c.Reason)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Select probes every candidate in order and returns the first usable one.
// All candidates are probed so the report is complete.
func Select(ctx context.Context, log *zap.Logger, candidates ...Candidate) (Provider, Report, error) {
	var (
		active Provider
		report Report
	)

	for _, c := range candidates {
		status := Status{Name: c.Name}

		if err := c.Probe(ctx); err != nil {
			status.Reason = err.Error()
			report.Candidates = append(report.Candidates, status)
			log.Debug("provider unavailable", zap.String("provider", c.Name), zap.Error(err))
			continue
		}

		p, err := c.New()
		if err != nil {
			status.Reason = fmt.Sprintf("init failed: %v", err)
			report.Candidates = append(report.Candidates, status)
			log.Warn("provider init failed", zap.String("provider", c.Name), zap.Error(err))
			continue
		}

		status.Available = true
		status.Capabilities = p.Capabilities()
		report.Candidates = append(report.Candidates, status)

		if active == nil {
			active = p
			report.Active = c.Name
		}
	}

	if active == nil {
		return nil, report, ErrNoProvider
	}

	log.Info("video processing provider selected",
		zap.String("provider", report.Active),
		zap.Int("candidates", len(candidates)))

	return active, report, nil
}
