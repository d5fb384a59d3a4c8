package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/s0_ingest"
	"github.com/arkanlabs/riskpipe/internal/s1_validate"
	"github.com/arkanlabs/riskpipe/internal/s2_transform"
	"github.com/arkanlabs/riskpipe/internal/s3_train"
	"github.com/arkanlabs/riskpipe/internal/s4_evaluate"
	"github.com/arkanlabs/riskpipe/internal/s5_push"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// ErrRunActive is returned when a training run is requested while another
// run holds the pipeline.
var ErrRunActive = errors.New("a training run is already active")

// RunSink persists finished run summaries. Implementations may drop entries;
// persistence failures never fail the run itself.
type RunSink interface {
	Save(ctx context.Context, summary contracts.RunSummary) error
}

// Orchestrator coordinates the six-stage training pipeline
// S0 → S1 → S2 → S3 → S4 → S5 and enforces run-level exclusion:
// at most one run is active at a time.
type Orchestrator struct {
	ingestion   *s0_ingest.Ingestion
	validator   *s1_validate.Validator
	transformer *s2_transform.Transformer
	trainer     *s3_train.Trainer
	evaluator   *s4_evaluate.Evaluator
	pusher      *s5_push.Pusher

	sink   RunSink // optional
	events *Broadcaster
	logger *logger.Logger

	runMu sync.Mutex
}

// NewOrchestrator wires the stage components together. sink may be nil.
func NewOrchestrator(
	ingestion *s0_ingest.Ingestion,
	validator *s1_validate.Validator,
	transformer *s2_transform.Transformer,
	trainer *s3_train.Trainer,
	evaluator *s4_evaluate.Evaluator,
	pusher *s5_push.Pusher,
	sink RunSink,
	events *Broadcaster,
	log *logger.Logger,
) *Orchestrator {
	if events == nil {
		events = NewBroadcaster()
	}
	return &Orchestrator{
		ingestion:   ingestion,
		validator:   validator,
		transformer: transformer,
		trainer:     trainer,
		evaluator:   evaluator,
		pusher:      pusher,
		sink:        sink,
		events:      events,
		logger:      log,
	}
}

// Events exposes the run event stream for subscribers.
func (o *Orchestrator) Events() *Broadcaster {
	return o.events
}

// Run executes one complete training run. It returns ErrRunActive without
// touching any state when another run is in flight. Every other failure is
// reported both in the returned summary and as a classified stage error.
func (o *Orchestrator) Run(ctx context.Context) (contracts.RunSummary, error) {
	if !o.runMu.TryLock() {
		return contracts.RunSummary{}, ErrRunActive
	}
	defer o.runMu.Unlock()

	return o.execute(ctx, GenerateRunID())
}

// StartAsync begins a run in the background and returns its identifier
// immediately, or ErrRunActive when another run holds the pipeline. The run
// outlives the caller's request; its outcome lands in the run sink and on
// the event stream.
func (o *Orchestrator) StartAsync(ctx context.Context) (string, error) {
	if !o.runMu.TryLock() {
		return "", ErrRunActive
	}

	runID := GenerateRunID()
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer o.runMu.Unlock()
		o.execute(runCtx, runID)
	}()
	return runID, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID string) (contracts.RunSummary, error) {
	started := time.Now().UTC()
	summary := contracts.RunSummary{RunID: runID, StartedAt: started}

	o.logger.WithField("run_id", runID).Info("Starting training run")
	o.events.Publish(Event{RunID: runID, Kind: EventRunStarted})

	err := o.runStages(ctx, runID, &summary)
	summary.Duration = time.Since(started)

	if err != nil {
		summary.ErrorKind = contracts.KindOf(err)
		summary.ErrorDetail = err.Error()
		if stage, ok := contracts.StageOf(err); ok {
			summary.RanToStage = stage
			o.events.Publish(Event{RunID: runID, Kind: EventStageFailed, Stage: stage, Detail: err.Error()})
		}
		o.logger.WithError(err).WithField("run_id", runID).Error("Training run failed")
	} else {
		o.logger.WithFields(map[string]interface{}{
			"run_id":   runID,
			"duration": summary.Duration.Seconds(),
			"accepted": summary.Accepted != nil && *summary.Accepted,
		}).Info("Training run completed")
	}

	o.events.Publish(Event{RunID: runID, Kind: EventRunFinished})
	o.persist(ctx, summary)
	return summary, err
}

// runStages drives the stage sequence, recording artifacts and outcomes on
// the summary as it goes.
func (o *Orchestrator) runStages(ctx context.Context, runID string, summary *contracts.RunSummary) error {
	// S0: Ingestion
	o.stageStarted(runID, contracts.StageIngestion)
	split, ingestRef, err := o.ingestion.Run(ctx, runID)
	if err != nil {
		return err
	}
	o.stageCompleted(runID, summary, contracts.StageIngestion, ingestRef)

	// S1: Validation. A failed verdict still leaves its artifact behind.
	o.stageStarted(runID, contracts.StageValidation)
	_, verdictRef, err := o.validator.Run(ctx, runID, split, ingestRef)
	if verdictRef.Path != "" {
		summary.Artifacts = append(summary.Artifacts, verdictRef)
	}
	if err != nil {
		return err
	}
	summary.RanToStage = contracts.StageValidation
	o.events.Publish(Event{RunID: runID, Kind: EventStageCompleted, Stage: contracts.StageValidation})

	// S2: Transformation
	o.stageStarted(runID, contracts.StageTransformation)
	features, featuresRef, err := o.transformer.Run(ctx, runID, split, verdictRef)
	if err != nil {
		return err
	}
	o.stageCompleted(runID, summary, contracts.StageTransformation, featuresRef)

	// S3: Training
	o.stageStarted(runID, contracts.StageTraining)
	candidate, modelRef, err := o.trainer.Run(ctx, runID, features, featuresRef)
	if err != nil {
		return err
	}
	o.stageCompleted(runID, summary, contracts.StageTraining, modelRef)

	// S4: Evaluation. Production is re-scored on this run's raw test
	// partition through its own transformer.
	o.stageStarted(runID, contracts.StageEvaluation)
	decision, decisionRef, err := o.evaluator.Run(ctx, runID, candidate, split.Test, modelRef)
	if err != nil {
		return err
	}
	o.stageCompleted(runID, summary, contracts.StageEvaluation, decisionRef)

	accepted := decision.Accepted
	summary.Accepted = &accepted
	metric := decision.CandidateMetric
	summary.Metric = &metric

	if !decision.Accepted {
		o.logger.WithFields(map[string]interface{}{
			"run_id":           runID,
			"candidate_metric": decision.CandidateMetric,
			"margin":           decision.Margin,
		}).Info("Candidate rejected, production unchanged")
		return nil
	}

	// S5: Pusher
	o.stageStarted(runID, contracts.StagePusher)
	result, pushRef, err := o.pusher.Run(ctx, runID, candidate, decision, decisionRef)
	if err != nil {
		return err
	}
	o.stageCompleted(runID, summary, contracts.StagePusher, pushRef)
	summary.Version = result.Version

	return nil
}

func (o *Orchestrator) stageStarted(runID string, stage contracts.Stage) {
	o.logger.WithField("run_id", runID).Infof("Running %s", stage.ShortName())
	o.events.Publish(Event{RunID: runID, Kind: EventStageStarted, Stage: stage})
}

func (o *Orchestrator) stageCompleted(runID string, summary *contracts.RunSummary, stage contracts.Stage, ref contracts.ArtifactRef) {
	summary.RanToStage = stage
	if ref.Path != "" {
		summary.Artifacts = append(summary.Artifacts, ref)
	}
	o.events.Publish(Event{RunID: runID, Kind: EventStageCompleted, Stage: stage})
}

func (o *Orchestrator) persist(ctx context.Context, summary contracts.RunSummary) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Save(ctx, summary); err != nil {
		o.logger.WithError(err).WithField("run_id", summary.RunID).Warn("Failed to persist run summary")
	}
}

// GenerateRunID creates a unique, time-sortable run identifier.
func GenerateRunID() string {
	short := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102_150405"), short)
}
