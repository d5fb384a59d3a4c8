package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

func TestMemoryRegistry_PutGet(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	bundle := contracts.ModelBundle{Version: "v1", Weights: []float64{0.5}, Metric: 0.8}
	require.NoError(t, reg.Put(ctx, bundle))

	got, err := reg.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.Metric)

	_, err = reg.Get(ctx, "v2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRegistry_EmptyHasNoCurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	_, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRegistry_SetCurrent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	require.NoError(t, reg.Put(ctx, contracts.ModelBundle{Version: "v1"}))
	require.NoError(t, reg.SetCurrent(ctx, "v1"))

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", version)
}

func TestMemoryRegistry_SetCurrentRefusesUnreachable(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	require.NoError(t, reg.Put(ctx, contracts.ModelBundle{Version: "v1"}))
	require.NoError(t, reg.SetCurrent(ctx, "v1"))

	// Pointing at a version that was never uploaded must fail and leave the
	// old pointer reachable.
	err := reg.SetCurrent(ctx, "ghost")
	assert.Error(t, err)

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", version)
}

func TestMemoryRegistry_ListVersions(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	require.NoError(t, reg.Put(ctx, contracts.ModelBundle{Version: "v2"}))
	require.NoError(t, reg.Put(ctx, contracts.ModelBundle{Version: "v1"}))

	versions, err := reg.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, versions)
}
