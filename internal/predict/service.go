package predict

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/internal/s2_transform"
	"github.com/arkanlabs/riskpipe/internal/s3_train"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// ErrNoProductionModel is returned while the registry has no production
// pointer yet (before the first successful run).
var ErrNoProductionModel = errors.New("no production model available")

// Prediction is one scored application row.
type Prediction struct {
	Label   int     `json:"label"`
	Score   float64 `json:"score"`
	Version string  `json:"version"`
}

// loadedModel is an immutable model snapshot served between repoints.
type loadedModel struct {
	version string
	bundle  contracts.ModelBundle
}

// Service serves predictions from the current production model. Each request
// observes the registry pointer; a repoint swaps the served snapshot without
// blocking in-flight predictions.
type Service struct {
	registry registry.Registry
	schema   contracts.Schema
	logger   *logger.Logger

	current atomic.Pointer[loadedModel]
	loadMu  sync.Mutex
}

// NewService creates a prediction service.
func NewService(reg registry.Registry, schema contracts.Schema, log *logger.Logger) *Service {
	return &Service{registry: reg, schema: schema, logger: log}
}

// Predict transforms one raw record with the production transformer and
// scores it with the production estimator.
func (s *Service) Predict(ctx context.Context, rec contracts.Record) (Prediction, error) {
	model, err := s.ensureCurrent(ctx)
	if err != nil {
		return Prediction{}, err
	}

	features, err := s2_transform.Apply(model.bundle.Transformer, s.schema, rec)
	if err != nil {
		return Prediction{}, fmt.Errorf("transform record: %w", err)
	}

	score := s3_train.Score(model.bundle.Weights, model.bundle.Bias, features)
	label := 0
	if score >= 0.5 {
		label = 1
	}

	return Prediction{Label: label, Score: score, Version: model.version}, nil
}

// Current returns the production version and its held-out metric.
func (s *Service) Current(ctx context.Context) (string, float64, time.Time, error) {
	model, err := s.ensureCurrent(ctx)
	if err != nil {
		return "", 0, time.Time{}, err
	}
	return model.version, model.bundle.Metric, model.bundle.TrainedAt, nil
}

// ensureCurrent returns the snapshot matching the registry pointer, loading
// a new bundle only when the pointer has moved.
func (s *Service) ensureCurrent(ctx context.Context) (*loadedModel, error) {
	version, ok, err := s.registry.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("read production pointer: %w", err)
	}
	if !ok {
		return nil, ErrNoProductionModel
	}

	if model := s.current.Load(); model != nil && model.version == version {
		return model, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// Another request may have loaded it while we waited.
	if model := s.current.Load(); model != nil && model.version == version {
		return model, nil
	}

	bundle, err := s.registry.Get(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", version, err)
	}

	model := &loadedModel{version: version, bundle: bundle}
	s.current.Store(model)

	s.logger.WithFields(map[string]interface{}{
		"version": version,
		"metric":  bundle.Metric,
	}).Info("Loaded production model")

	return model, nil
}
