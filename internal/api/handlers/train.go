package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/arkanlabs/riskpipe/internal/pipeline"
	"github.com/arkanlabs/riskpipe/internal/runlog"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// TrainHandler triggers training runs and exposes run history.
type TrainHandler struct {
	orchestrator *pipeline.Orchestrator
	runs         *runlog.Repository // nil when run history is not configured
	logger       *logger.Logger
}

// NewTrainHandler creates a training handler. runs may be nil.
func NewTrainHandler(orch *pipeline.Orchestrator, runs *runlog.Repository, log *logger.Logger) *TrainHandler {
	return &TrainHandler{orchestrator: orch, runs: runs, logger: log}
}

// Trigger handles POST /api/train. By default the run executes within the
// request and the full run summary is returned; with ?async=true the run
// proceeds in the background and only its identifier is returned. Either
// way a second trigger while a run is active is refused with 409.
func (h *TrainHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		runID, err := h.orchestrator.StartAsync(r.Context())
		if err != nil {
			h.respondTriggerError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
		return
	}

	summary, err := h.orchestrator.Run(r.Context())
	if err != nil && !summary.Failed() {
		h.respondTriggerError(w, err)
		return
	}

	// A failed run still yields a summary; the caller reads the error kind
	// from it.
	respondJSON(w, http.StatusOK, summary)
}

func (h *TrainHandler) respondTriggerError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrRunActive) {
		respondError(w, http.StatusConflict, "RunActive", "a training run is already active")
		return
	}
	h.logger.WithError(err).Error("Failed to start training run")
	respondError(w, http.StatusInternalServerError, "TriggerFailed", err.Error())
}

// ListRuns handles GET /api/runs.
func (h *TrainHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "RunHistoryDisabled", "run history storage is not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer up to 500")
			return
		}
		limit = n
	}

	summaries, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "RunHistoryFailed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": summaries})
}
