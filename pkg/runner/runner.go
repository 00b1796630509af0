// Package runner embeds framecompare in another Go program: runs are
// enqueued on DBOS and executed by this process.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/app"
	"github.com/tendant/framecompare/internal/config"
	"github.com/tendant/framecompare/internal/dbosruntime"
	"github.com/tendant/framecompare/internal/workflows"
	"github.com/tendant/framecompare/pkg/compare"
)

// Config holds the configuration for initializing the runner
type Config struct {
	DatabaseURL        string // DBOS PostgreSQL connection string
	AppName            string // Application name for DBOS
	QueueName          string // DBOS queue name
	Concurrency        int    // Runs executed at a time
	ApplicationVersion string // Optional: Override binary hash for version matching

	// Settings for providers, storage and publishing; nil loads them from the environment
	Settings *config.Config

	Logger *zap.Logger
}

// Runner provides a high-level API for running comparisons via DBOS
type Runner struct {
	runtime    *dbosruntime.Runtime
	runner     *workflows.WorkflowRunner
	components *app.Components
}

// New creates and launches a runner that executes queued comparisons
func New(ctx context.Context, cfg Config) (*Runner, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	settings := cfg.Settings
	if settings == nil {
		s, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		settings = s
	}

	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	components, err := app.Build(ctx, settings, log, app.Progress{})
	if err != nil {
		dbosRuntime.Shutdown(5 * time.Second)
		return nil, err
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)
	components.Register(workflowRunner, log, app.Progress{})

	// Launch DBOS (must be after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Runner{
		runtime:    dbosRuntime,
		runner:     workflowRunner,
		components: components,
	}, nil
}

// RunCompare enqueues a comparison and returns its run id
func (r *Runner) RunCompare(ctx context.Context, req compare.Request) (string, error) {
	req.Job = compare.JobCompare
	if err := req.Validate(); err != nil {
		return "", err
	}
	return r.runner.RunAsync(ctx, req)
}

// RunUpload enqueues an upload of stills already in outputDir
func (r *Runner) RunUpload(ctx context.Context, outputDir string, upload compare.UploadOptions) (string, error) {
	req := compare.Request{Job: compare.JobUpload, OutputDir: outputDir, Upload: &upload}
	if err := req.Validate(); err != nil {
		return "", err
	}
	return r.runner.RunAsync(ctx, req)
}

// Status returns the state of a run and, when a ledger is configured, its collection URLs
func (r *Runner) Status(ctx context.Context, runID string) (*compare.RunStatus, error) {
	st, err := r.runner.GetStatus(ctx, runID)
	if err != nil {
		return nil, err
	}
	rs := st.RunStatus()
	out := &rs
	if r.components.Ledger != nil {
		entries, err := r.components.Ledger.ForRun(ctx, runID)
		if err != nil {
			return out, err
		}
		if len(entries) > 0 {
			out.URLs = nil
			for _, e := range entries {
				out.URLs = append(out.URLs, e.URL)
			}
		}
	}
	return out, nil
}

// Shutdown gracefully shuts down the runner
func (r *Runner) Shutdown(timeout time.Duration) {
	if r.runtime != nil {
		r.runtime.Shutdown(timeout)
	}
	if r.components != nil {
		r.components.Close()
	}
}
