package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/arkanlabs/riskpipe/internal/pipeline"
	"github.com/arkanlabs/riskpipe/internal/scheduler"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// RetrainJob runs the full training pipeline on a schedule. A rejected
// candidate is a normal outcome; only stage failures count as job failures.
type RetrainJob struct {
	orchestrator *pipeline.Orchestrator
	schedule     string
	logger       *logger.Logger
}

// NewRetrainJob creates a retraining job with the given cron schedule.
func NewRetrainJob(orch *pipeline.Orchestrator, schedule string, log *logger.Logger) *RetrainJob {
	return &RetrainJob{orchestrator: orch, schedule: schedule, logger: log}
}

// Name returns the job name.
func (j *RetrainJob) Name() string {
	return "retrain_pipeline"
}

// Schedule returns the cron schedule expression.
func (j *RetrainJob) Schedule() string {
	return j.schedule
}

// Run executes one training run.
func (j *RetrainJob) Run(ctx context.Context) error {
	summary, err := j.orchestrator.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunActive) {
			// A manually triggered run is in flight; retrying would only
			// collide with it again.
			return fmt.Errorf("%w: %s", scheduler.ErrNoRetry, err)
		}
		return err
	}

	fields := map[string]interface{}{
		"run_id": summary.RunID,
	}
	if summary.Accepted != nil {
		fields["accepted"] = *summary.Accepted
	}
	if summary.Version != "" {
		fields["version"] = summary.Version
	}
	j.logger.WithFields(fields).Info("Scheduled retraining finished")

	return nil
}
