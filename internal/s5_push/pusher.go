package s5_push

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// Pusher uploads an accepted candidate to the registry under a fresh
// version identifier and then atomically repoints production. Invoked only
// on an accepted evaluation decision. The repoint is all-or-nothing: any
// failure before or during SetCurrent leaves the previous production
// reference untouched.
type Pusher struct {
	registry registry.Registry
	store    *artifact.Store
	logger   *logger.Logger
}

// PushResult is the S5 artifact payload.
type PushResult struct {
	Version    string    `json:"version"`
	Metric     float64   `json:"metric"`
	PromotedAt time.Time `json:"promoted_at"`
}

// NewPusher creates the pusher stage.
func NewPusher(reg registry.Registry, store *artifact.Store, log *logger.Logger) *Pusher {
	return &Pusher{registry: reg, store: store, logger: log}
}

// Run promotes the candidate and writes the S5 artifact.
func (p *Pusher) Run(ctx context.Context, runID string, candidate contracts.ModelBundle, decision contracts.Decision, upstream contracts.ArtifactRef) (PushResult, contracts.ArtifactRef, error) {
	if !decision.Accepted {
		return PushResult{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StagePusher, contracts.ErrPushFailure,
				fmt.Errorf("pusher invoked with a rejected decision"))
	}

	version := uuid.NewString()
	candidate.Version = version

	// Upload first; only a fully uploaded bundle may become production.
	if err := p.registry.Put(ctx, candidate); err != nil {
		return PushResult{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StagePusher, contracts.ErrPushFailure,
				fmt.Errorf("upload bundle: %w", err))
	}

	if err := p.registry.SetCurrent(ctx, version); err != nil {
		return PushResult{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StagePusher, contracts.ErrPushFailure,
				fmt.Errorf("repoint production: %w", err))
	}

	result := PushResult{
		Version:    version,
		Metric:     candidate.Metric,
		PromotedAt: time.Now().UTC(),
	}

	ref, err := p.store.Write(runID, contracts.StagePusher, result,
		[]contracts.ArtifactRef{upstream}, map[string]string{"version": version})
	if err != nil {
		// Promotion already happened; the artifact write failure is still a
		// stage failure for the run report.
		return result, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StagePusher, contracts.ErrPushFailure,
				fmt.Errorf("persist push artifact: %w", err))
	}

	p.logger.WithFields(map[string]interface{}{
		"run_id":  runID,
		"version": version,
		"metric":  candidate.Metric,
	}).Info("Model promoted to production")

	return result, ref, nil
}
