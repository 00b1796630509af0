package workflows

import (
	"context"

	"github.com/tendant/framecompare/internal/ledger"
	"github.com/tendant/framecompare/internal/slowpics"
	"github.com/tendant/framecompare/pkg/compare"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request compare.Request
	RunID   string
}

// WorkflowResult contains the result of workflow execution.
// Error is kept as text so the result survives DBOS checkpointing.
type WorkflowResult struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// Workflow defines the interface for processing workflows
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// SourceResolver maps a track reference to a path the provider can load.
// Remote media is downloaded into dir.
type SourceResolver interface {
	Localize(ctx context.Context, dir, ref string) (string, error)
}

// Publisher uploads a batch of stills as one or more collections
type Publisher interface {
	Publish(ctx context.Context, b slowpics.Batch) (*slowpics.Result, error)
}

// Recorder keeps the published collections of a run
type Recorder interface {
	Record(ctx context.Context, e ledger.Entry) error
}
