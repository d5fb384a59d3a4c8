package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/predict"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// PredictHandler serves single-record predictions from the production model.
type PredictHandler struct {
	service *predict.Service
	logger  *logger.Logger
}

// NewPredictHandler creates a prediction handler.
func NewPredictHandler(service *predict.Service, log *logger.Logger) *PredictHandler {
	return &PredictHandler{service: service, logger: log}
}

// Predict handles POST /api/predict.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var rec contracts.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "request body is not a valid record")
		return
	}

	pred, err := h.service.Predict(r.Context(), rec)
	if err != nil {
		if errors.Is(err, predict.ErrNoProductionModel) {
			respondError(w, http.StatusServiceUnavailable,
				string(contracts.ErrNoProductionModel), "no model has been promoted yet")
			return
		}
		h.logger.WithError(err).Error("Prediction failed")
		respondError(w, http.StatusInternalServerError, "PredictionFailed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, pred)
}
