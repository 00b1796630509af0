// Package dbosruntime hosts the durable compare queue. The CLI and the
// library client enqueue compare and upload runs on it; the worker drains it.
package dbosruntime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"
)

// ErrMissingDatabaseURL is returned when no DBOS system database is configured
var ErrMissingDatabaseURL = errors.New("DBOS_SYSTEM_DATABASE_URL is required")

// Runtime owns the DBOS context, the compare queue and a read-only handle on
// the status table used to answer run lookups.
type Runtime struct {
	dbosContext dbos.DBOSContext
	queue       *dbos.WorkflowQueue
	config      Config
	db          *sql.DB
}

// NewRuntime connects to the system database and declares the compare queue.
// The worker concurrency bounds how many runs, each with its own decode
// session and download directory, one process executes at a time.
func NewRuntime(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DBOS context: %w", err)
	}

	queue := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName,
		dbos.WithWorkerConcurrency(cfg.Concurrency),
	)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open status database: %w", err)
	}

	return &Runtime{
		dbosContext: dbosCtx,
		queue:       &queue,
		config:      cfg,
		db:          db,
	}, nil
}

// Launch starts dequeuing runs. The compare and upload workflow function has
// to be registered before this is called.
func (r *Runtime) Launch() error {
	return dbos.Launch(r.dbosContext)
}

// Shutdown stops dequeuing, waits up to timeout for runs in flight and closes
// the status handle.
func (r *Runtime) Shutdown(timeout time.Duration) error {
	dbos.Shutdown(r.dbosContext, timeout)
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Context is the DBOS context runs are registered, enqueued and retrieved with
func (r *Runtime) Context() dbos.DBOSContext {
	return r.dbosContext
}

// QueueName is the compare queue runs are enqueued on
func (r *Runtime) QueueName() string {
	return r.config.QueueName
}

// Concurrency is the number of runs a worker executes in parallel
func (r *Runtime) Concurrency() int {
	return r.config.Concurrency
}
