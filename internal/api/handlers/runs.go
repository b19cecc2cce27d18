package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/qualitative"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

const maxRunsLimit = brain.DefaultHistorySize

// RunHandler starts, inspects and cancels ranking runs
type RunHandler struct {
	manager     *brain.Manager
	history     *brain.History
	queue       *qualitative.RetryQueue
	defaultMode contracts.Mode
	logger      *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(manager *brain.Manager, history *brain.History, queue *qualitative.RetryQueue, defaultMode contracts.Mode, log *logger.Logger) *RunHandler {
	return &RunHandler{
		manager:     manager,
		history:     history,
		queue:       queue,
		defaultMode: defaultMode,
		logger:      log,
	}
}

// StartRunRequest is the optional body of POST /api/ranking/runs
type StartRunRequest struct {
	Mode  string `json:"mode,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// StartRun launches a background run
// POST /api/ranking/runs {"mode": "strict|incremental", "force": false}
func (h *RunHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := h.defaultMode
	switch contracts.Mode(req.Mode) {
	case "":
	case contracts.ModeStrict, contracts.ModeIncremental:
		mode = contracts.Mode(req.Mode)
	default:
		respondError(w, http.StatusBadRequest, "mode must be strict or incremental")
		return
	}

	runID, err := h.manager.Start(brain.RunConfig{Mode: mode, Force: req.Force})
	if errors.Is(err, brain.ErrRunInProgress) {
		active, _ := h.manager.Active()
		respondJSON(w, http.StatusConflict, map[string]string{
			"error":  err.Error(),
			"run_id": active,
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to start run")
		respondError(w, http.StatusInternalServerError, "Failed to start run")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": runID,
		"mode":   mode,
		"force":  req.Force,
	})
}

// GetRun reports an active or finished run
// GET /api/ranking/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.Status(mux.Vars(r)["id"])
	if errors.Is(err, brain.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// CancelRun stops an active run
// DELETE /api/ranking/runs/{id}
func (h *RunHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Cancel(id); errors.Is(err, brain.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": "cancellation requested",
	})
}

// ListRuns returns finished runs, newest first
// GET /api/ranking/runs?limit=20
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, 20, maxRunsLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	active, running := h.manager.Active()
	resp := map[string]interface{}{
		"runs": h.history.List(limit),
	}
	if running {
		resp["active"] = active
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetPending lists tickers waiting for a retry pass
// GET /api/ranking/pending
func (h *RunHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	items := h.queue.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pending": items,
		"count":   len(items),
	})
}
