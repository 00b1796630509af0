package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tendant/framecompare/internal/dbosruntime"
	"github.com/tendant/framecompare/internal/ledger"
	"github.com/tendant/framecompare/internal/workflows"
	"github.com/tendant/framecompare/pkg/compare"
)

// Runner runs or enqueues comparison workflows
type Runner interface {
	Run(wctx *workflows.WorkflowContext) (*workflows.WorkflowResult, error)
	RunAsync(ctx context.Context, req compare.Request) (string, error)
	GetStatus(ctx context.Context, runID string) (*workflows.WorkflowStatus, error)
	Async() bool
}

// CollectionLister returns the collections a run published
type CollectionLister interface {
	ForRun(ctx context.Context, runID string) ([]ledger.Entry, error)
}

// CompareHandler serves the worker API
type CompareHandler struct {
	runner      Runner
	collections CollectionLister
	log         *zap.Logger
}

// NewCompareHandler creates a handler. collections may be nil.
func NewCompareHandler(runner Runner, collections CollectionLister, log *zap.Logger) *CompareHandler {
	return &CompareHandler{
		runner:      runner,
		collections: collections,
		log:         log,
	}
}

// Routes registers the API on mux
func (h *CompareHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", HandleHealth)
	mux.HandleFunc("/v1/compare", h.HandleCompare)
	mux.HandleFunc("/v1/runs/", h.HandleStatus)
}

// HandleCompare handles POST /v1/compare. With DBOS the run is enqueued and
// 202 is returned with the run id, otherwise the run completes inline.
func (h *CompareHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req compare.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.runner.Async() {
		runID, err := h.runner.RunAsync(r.Context(), req)
		if err != nil {
			h.log.Error("failed to enqueue run", zap.Error(err))
			http.Error(w, fmt.Sprintf("Failed to enqueue run: %v", err), http.StatusInternalServerError)
			return
		}

		h.log.Info("run enqueued", zap.String("run_id", runID), zap.String("job", string(req.JobOrDefault())))
		writeJSON(w, http.StatusAccepted, compare.Response{RunID: runID, Status: "pending"})
		return
	}

	runID := workflows.NewRunID(req.JobOrDefault())
	h.log.Info("running comparison inline", zap.String("run_id", runID))

	result, err := h.runner.Run(&workflows.WorkflowContext{
		Ctx:     r.Context(),
		Request: req,
		RunID:   runID,
	})

	var resp compare.Response
	if result != nil && result.Summary != nil {
		resp = result.Summary.Response()
	} else {
		resp = compare.Response{RunID: runID, Status: string(workflows.StatusFailed)}
		if err != nil {
			resp.Messages = []string{err.Error()}
		}
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, workflows.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, workflows.ErrWorkflowNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	}
}

// HandleStatus handles GET /v1/runs/{runID}
func (h *CompareHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/")
	if runID == "" {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	status, err := h.runner.GetStatus(r.Context(), runID)
	switch {
	case errors.Is(err, workflows.ErrAsyncUnavailable):
		http.Error(w, "Run status requires DBOS", http.StatusNotImplemented)
		return
	case errors.Is(err, dbosruntime.ErrWorkflowNotFound):
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error("failed to get run status", zap.String("run_id", runID), zap.Error(err))
		http.Error(w, "Failed to get run status", http.StatusInternalServerError)
		return
	}

	resp := status.RunStatus()
	if h.collections != nil {
		entries, err := h.collections.ForRun(r.Context(), runID)
		if err != nil {
			h.log.Warn("failed to list run collections", zap.String("run_id", runID), zap.Error(err))
		}
		if len(entries) > 0 {
			resp.URLs = ledgerURLs(entries)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func ledgerURLs(entries []ledger.Entry) []string {
	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.URL
	}
	return urls
}

// HandleHealth handles GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
