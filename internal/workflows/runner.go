package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"

	"github.com/tendant/framecompare/internal/dbosruntime"
	"github.com/tendant/framecompare/pkg/compare"
)

// WorkflowRunner executes workflows, inline or through the DBOS queue
type WorkflowRunner struct {
	workflows   map[compare.Job]Workflow
	dbosRuntime *dbosruntime.Runtime
}

// NewWorkflowRunner creates a new workflow runner. dbosRuntime may be nil,
// in which case only synchronous runs are available.
func NewWorkflowRunner(dbosRuntime *dbosruntime.Runtime) *WorkflowRunner {
	runner := &WorkflowRunner{
		workflows:   make(map[compare.Job]Workflow),
		dbosRuntime: dbosRuntime,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWorkflowDBOS)
	}

	return runner
}

// Register registers a workflow for a job
func (r *WorkflowRunner) Register(job compare.Job, workflow Workflow) {
	r.workflows[job] = workflow
}

// Async reports whether RunAsync and GetStatus are available
func (r *WorkflowRunner) Async() bool {
	return r.dbosRuntime != nil
}

// Run executes the workflow for the request's job synchronously
func (r *WorkflowRunner) Run(wctx *WorkflowContext) (*WorkflowResult, error) {
	workflow, ok := r.workflows[wctx.Request.JobOrDefault()]
	if !ok {
		return &WorkflowResult{
			Success: false,
			Error:   ErrWorkflowNotFound.Error(),
		}, ErrWorkflowNotFound
	}

	return workflow.Execute(wctx)
}

// NewRunID returns a run id for the job
func NewRunID(job compare.Job) string {
	return fmt.Sprintf("%s-%s", job, uuid.NewString())
}

// RunAsync enqueues a workflow for async execution via DBOS. The job only
// has to be registered in the process that executes the queue.
func (r *WorkflowRunner) RunAsync(ctx context.Context, req compare.Request) (string, error) {
	if r.dbosRuntime == nil {
		return "", ErrAsyncUnavailable
	}

	handle, err := dbos.RunWorkflow[compare.Request, *WorkflowResult](
		r.dbosRuntime.Context(),
		r.executeWorkflowDBOS,
		req,
		dbos.WithWorkflowID(NewRunID(req.JobOrDefault())),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	if err != nil {
		return "", err
	}

	return handle.GetWorkflowID(), nil
}

// executeWorkflowDBOS is the DBOS workflow function that wraps registered workflows
func (r *WorkflowRunner) executeWorkflowDBOS(dbosCtx dbos.DBOSContext, req compare.Request) (*WorkflowResult, error) {
	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return &WorkflowResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	// DBOSContext implements context.Context
	return r.Run(&WorkflowContext{
		Ctx:     dbosCtx,
		Request: req,
		RunID:   workflowID,
	})
}

// WorkflowStatus represents the status of a workflow execution. Result is
// set once the run has finished and DBOS still holds its output.
type WorkflowStatus struct {
	RunID     string          `json:"run_id"`
	State     string          `json:"state"`
	Workflow  string          `json:"workflow,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Result    *WorkflowResult `json:"result,omitempty"`
}

// RunStatus is the public form of the status
func (s *WorkflowStatus) RunStatus() compare.RunStatus {
	out := compare.RunStatus{
		RunID:     s.RunID,
		State:     s.State,
		Workflow:  s.Workflow,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Result == nil {
		return out
	}
	if s.Result.Summary != nil {
		resp := s.Result.Summary.Response()
		out.Screenshots = resp.Screenshots
		out.Errors = resp.Errors
		out.URLs = resp.URLs
		out.Messages = resp.Messages
	} else if s.Result.Error != "" {
		out.Messages = []string{s.Result.Error}
	}
	return out
}

// GetStatus reads the run's state from the DBOS status table. Finished runs
// also carry the WorkflowResult recorded by DBOS.
func (r *WorkflowRunner) GetStatus(ctx context.Context, runID string) (*WorkflowStatus, error) {
	if r.dbosRuntime == nil {
		return nil, ErrAsyncUnavailable
	}

	info, err := r.dbosRuntime.GetWorkflowStatus(ctx, runID)
	if err != nil {
		return nil, err
	}

	status := &WorkflowStatus{
		RunID:     info.WorkflowUUID,
		State:     State(info.Status),
		Workflow:  info.Name,
		CreatedAt: time.UnixMilli(info.CreatedAt),
		UpdatedAt: time.UnixMilli(info.UpdatedAt),
	}
	if finished(status.State) {
		status.Result = r.result(runID)
	}
	return status, nil
}

// result reads the output of a finished run. GetResult does not block here
// because the run is already terminal.
func (r *WorkflowRunner) result(runID string) *WorkflowResult {
	handle, err := dbos.RetrieveWorkflow[*WorkflowResult](r.dbosRuntime.Context(), runID)
	if err != nil {
		return nil
	}
	res, _ := handle.GetResult()
	return res
}

func finished(state string) bool {
	return state == "succeeded" || state == "failed"
}

// State maps a DBOS workflow status to pending, running, succeeded, failed or cancelled
func State(dbosStatus string) string {
	switch strings.ToUpper(dbosStatus) {
	case "ENQUEUED", "PENDING_QUEUE":
		return "pending"
	case "PENDING":
		return "running"
	case "SUCCESS":
		return "succeeded"
	case "CANCELLED":
		return "cancelled"
	case "ERROR", "RETRIES_EXCEEDED", "MAX_RECOVERY_ATTEMPTS_EXCEEDED":
		return "failed"
	}
	return strings.ToLower(dbosStatus)
}
