package s4_evaluate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/internal/s2_transform"
	"github.com/arkanlabs/riskpipe/internal/s3_train"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// Evaluator decides whether a candidate model may replace production.
// This is the single gating point of the pipeline: no other component
// promotes a model. The production model is always re-scored on the
// current run's held-out records, through its own bundled transformer,
// so both metrics come from the same split.
type Evaluator struct {
	registry registry.Registry
	schema   contracts.Schema
	margin   float64
	store    *artifact.Store
	logger   *logger.Logger
}

// NewEvaluator creates the evaluation stage.
func NewEvaluator(reg registry.Registry, schema contracts.Schema, margin float64, store *artifact.Store, log *logger.Logger) *Evaluator {
	return &Evaluator{
		registry: reg,
		schema:   schema,
		margin:   margin,
		store:    store,
		logger:   log,
	}
}

// Run produces the promotion decision and writes the S4 artifact.
func (e *Evaluator) Run(ctx context.Context, runID string, candidate contracts.ModelBundle, testRecords []contracts.Record, upstream contracts.ArtifactRef) (contracts.Decision, contracts.ArtifactRef, error) {
	decision, err := e.Decide(ctx, candidate, testRecords)
	if err != nil {
		return contracts.Decision{}, contracts.ArtifactRef{}, err
	}

	summary := map[string]string{
		"accepted":         strconv.FormatBool(decision.Accepted),
		"candidate_metric": strconv.FormatFloat(decision.CandidateMetric, 'f', 6, 64),
		"margin":           strconv.FormatFloat(decision.Margin, 'f', 6, 64),
	}
	if decision.ProductionMetric != nil {
		summary["production_metric"] = strconv.FormatFloat(*decision.ProductionMetric, 'f', 6, 64)
	}

	ref, err := e.store.Write(runID, contracts.StageEvaluation, decision,
		[]contracts.ArtifactRef{upstream}, summary)
	if err != nil {
		return contracts.Decision{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageEvaluation, contracts.ErrRegistryUnavailable,
				fmt.Errorf("persist decision artifact: %w", err))
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":           runID,
		"accepted":         decision.Accepted,
		"candidate_metric": decision.CandidateMetric,
	}).Info("Promotion decision made")

	return decision, ref, nil
}

// Decide applies the acceptance rule: accept iff the candidate's metric
// beats production by more than the configured margin. With no production
// model the candidate is accepted unconditionally (bootstrap).
func (e *Evaluator) Decide(ctx context.Context, candidate contracts.ModelBundle, testRecords []contracts.Record) (contracts.Decision, error) {
	decision := contracts.Decision{
		CandidateMetric: candidate.Metric,
		Margin:          e.margin,
	}

	currentVersion, ok, err := e.registry.GetCurrent(ctx)
	if err != nil {
		return contracts.Decision{},
			contracts.NewStageError(contracts.StageEvaluation, contracts.ErrRegistryUnavailable,
				fmt.Errorf("resolve production model: %w", err))
	}

	if !ok {
		// Bootstrap: the first trained model is promoted regardless of its
		// metric value.
		decision.Accepted = true
		return decision, nil
	}

	production, err := e.registry.Get(ctx, currentVersion)
	if err != nil {
		return contracts.Decision{},
			contracts.NewStageError(contracts.StageEvaluation, contracts.ErrRegistryUnavailable,
				fmt.Errorf("load production model %s: %w", currentVersion, err))
	}

	testMatrix, err := s2_transform.ApplyAll(production.Transformer, e.schema, testRecords)
	if err != nil {
		return contracts.Decision{},
			contracts.NewStageError(contracts.StageEvaluation, contracts.ErrSchemaDrift,
				fmt.Errorf("transform test records with production transformer: %w", err))
	}

	prodMetric := s3_train.Accuracy(production.Weights, production.Bias, testMatrix)
	decision.ProductionMetric = &prodMetric
	decision.Accepted = candidate.Metric-prodMetric > e.margin

	return decision, nil
}
