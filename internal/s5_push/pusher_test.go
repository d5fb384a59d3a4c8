package s5_push

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

func newPusher(t *testing.T, reg registry.Registry) *Pusher {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewPusher(reg, store, logger.NewNop())
}

func TestRun_PromotesAcceptedCandidate(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	p := newPusher(t, reg)

	candidate := contracts.ModelBundle{Weights: []float64{1}, Metric: 0.9}
	decision := contracts.Decision{Accepted: true, CandidateMetric: 0.9}

	result, _, err := p.Run(ctx, "run-1", candidate, decision, contracts.ArtifactRef{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Version)

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, result.Version, version)

	// The promoted bundle carries the transformer and metric.
	bundle, err := reg.Get(ctx, version)
	require.NoError(t, err)
	assert.Equal(t, 0.9, bundle.Metric)
}

func TestRun_RefusesRejectedDecision(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	p := newPusher(t, reg)

	_, _, err := p.Run(ctx, "run-1", contracts.ModelBundle{}, contracts.Decision{Accepted: false}, contracts.ArtifactRef{})
	require.Error(t, err)
	assert.Equal(t, contracts.ErrPushFailure, contracts.KindOf(err))

	_, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no promotion may happen on a rejected decision")
}

func TestRun_UploadFailureLeavesPointerUntouched(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	// Promote a first model, then make uploads fail.
	p := newPusher(t, reg)
	first, _, err := p.Run(ctx, "run-1", contracts.ModelBundle{Metric: 0.8}, contracts.Decision{Accepted: true}, contracts.ArtifactRef{})
	require.NoError(t, err)

	reg.FailPut = true
	_, _, err = p.Run(ctx, "run-2", contracts.ModelBundle{Metric: 0.95}, contracts.Decision{Accepted: true}, contracts.ArtifactRef{})
	require.Error(t, err)
	assert.Equal(t, contracts.ErrPushFailure, contracts.KindOf(err))

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.Version, version, "previous production must stay reachable")
}

func TestRun_SetCurrentFailureLeavesPointerUntouched(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	p := newPusher(t, reg)
	first, _, err := p.Run(ctx, "run-1", contracts.ModelBundle{Metric: 0.8}, contracts.Decision{Accepted: true}, contracts.ArtifactRef{})
	require.NoError(t, err)

	// Failure injected between upload and repoint: the upload happened, the
	// pointer must not move.
	reg.FailSetCurrent = true
	_, _, err = p.Run(ctx, "run-2", contracts.ModelBundle{Metric: 0.95}, contracts.Decision{Accepted: true}, contracts.ArtifactRef{})
	require.Error(t, err)
	assert.Equal(t, contracts.ErrPushFailure, contracts.KindOf(err))

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.Version, version)

	// Both versions exist in history; only the old one is production.
	versions, err := reg.ListVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}
