package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/predict"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// ModelsHandler exposes the production pointer and version history.
type ModelsHandler struct {
	service  *predict.Service
	registry registry.Registry
	logger   *logger.Logger
}

// NewModelsHandler creates a models handler.
func NewModelsHandler(service *predict.Service, reg registry.Registry, log *logger.Logger) *ModelsHandler {
	return &ModelsHandler{service: service, registry: reg, logger: log}
}

// GetCurrent handles GET /api/models/current.
func (h *ModelsHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	version, metric, trainedAt, err := h.service.Current(r.Context())
	if err != nil {
		if errors.Is(err, predict.ErrNoProductionModel) {
			respondError(w, http.StatusNotFound,
				string(contracts.ErrNoProductionModel), "no model has been promoted yet")
			return
		}
		h.logger.WithError(err).Error("Failed to read production model")
		respondError(w, http.StatusInternalServerError,
			string(contracts.ErrRegistryUnavailable), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":    version,
		"metric":     metric,
		"trained_at": trainedAt.Format(time.RFC3339),
	})
}

// ListVersions handles GET /api/models.
func (h *ModelsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.registry.ListVersions(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list model versions")
		respondError(w, http.StatusInternalServerError,
			string(contracts.ErrRegistryUnavailable), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}
