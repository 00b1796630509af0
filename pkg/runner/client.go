package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/framecompare/internal/dbosruntime"
	"github.com/tendant/framecompare/internal/workflows"
	"github.com/tendant/framecompare/pkg/compare"
)

// Client enqueues runs without executing them. A framecompare worker
// attached to the same DBOS database and queue picks them up.
type Client struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// NewClient creates a client that can start runs but doesn't execute them
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	// no workflows registered: this process only enqueues
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Client{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// Enqueue submits a request for a worker to execute
func (c *Client) Enqueue(ctx context.Context, req compare.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return c.runner.RunAsync(ctx, req)
}

// Status returns the state of a run
func (c *Client) Status(ctx context.Context, runID string) (*compare.RunStatus, error) {
	st, err := c.runner.GetStatus(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := st.RunStatus()
	return &out, nil
}

// Shutdown gracefully shuts down the client
func (c *Client) Shutdown(timeout time.Duration) {
	if c.runtime != nil {
		c.runtime.Shutdown(timeout)
	}
}
