package s4_evaluate

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

// identityTransformer passes the schema's numeric columns through unscaled
// and declares no categories, so production scoring is easy to control.
func identityTransformer(schema contracts.Schema) contracts.TransformerState {
	state := contracts.TransformerState{
		Categories: make(map[string][]string),
		Means:      make(map[string]float64),
		Stddevs:    make(map[string]float64),
	}
	var names []string
	for _, col := range schema.NumericColumns() {
		state.Means[col.Name] = 0
		state.Stddevs[col.Name] = 1
		names = append(names, col.Name)
	}
	for _, col := range schema.CategoricalColumns() {
		state.Categories[col.Name] = nil
	}
	state.FeatureNames = names
	return state
}

// alwaysPositiveBundle predicts class 1 for every record, so its accuracy
// on a test set equals the fraction of positive labels.
func alwaysPositiveBundle(schema contracts.Schema, version string) contracts.ModelBundle {
	state := identityTransformer(schema)
	return contracts.ModelBundle{
		Version:     version,
		Weights:     make([]float64, len(state.FeatureNames)),
		Bias:        5,
		Transformer: state,
	}
}

// testRecords returns records of which `positive` out of `n` have label 1.
func testRecords(n, positive int) []contracts.Record {
	records := make([]contracts.Record, n)
	for i := range records {
		records[i] = contracts.Record{
			ID: int64(i + 1), Gender: "Male", Age: 30, DrivingLicense: 1,
			VehicleAge: "1-2 Year", VehicleDamage: "Yes", AnnualPremium: 30000,
		}
		if i < positive {
			records[i].Response = 1
		}
	}
	return records
}

func newEvaluator(t *testing.T, reg registry.Registry, margin float64) *Evaluator {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewEvaluator(reg, contracts.DefaultSchema(), margin, store, logger.NewNop())
}

func TestDecide_BootstrapAlwaysAccepts(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	e := newEvaluator(t, reg, 0.02)

	// Even a terrible candidate is promoted when no production model exists.
	candidate := contracts.ModelBundle{Metric: 0.01}

	decision, err := e.Decide(context.Background(), candidate, testRecords(10, 8))
	require.NoError(t, err)
	assert.True(t, decision.Accepted)
	assert.Nil(t, decision.ProductionMetric)
	assert.Equal(t, 0.01, decision.CandidateMetric)
}

func TestDecide_RejectsWithinMargin(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	// Production predicts all-positive; 8 of 10 test labels are positive,
	// so its re-scored metric is 0.80.
	prod := alwaysPositiveBundle(contracts.DefaultSchema(), "v1")
	require.NoError(t, reg.Put(ctx, prod))
	require.NoError(t, reg.SetCurrent(ctx, "v1"))

	e := newEvaluator(t, reg, 0.02)

	candidate := contracts.ModelBundle{Metric: 0.805}
	decision, err := e.Decide(ctx, candidate, testRecords(10, 8))
	require.NoError(t, err)

	require.NotNil(t, decision.ProductionMetric)
	assert.InDelta(t, 0.80, *decision.ProductionMetric, 1e-9)
	assert.False(t, decision.Accepted, "0.805 - 0.80 <= 0.02 must reject")
}

func TestDecide_AcceptsAboveMargin(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	prod := alwaysPositiveBundle(contracts.DefaultSchema(), "v1")
	require.NoError(t, reg.Put(ctx, prod))
	require.NoError(t, reg.SetCurrent(ctx, "v1"))

	e := newEvaluator(t, reg, 0.02)

	candidate := contracts.ModelBundle{Metric: 0.85}
	decision, err := e.Decide(ctx, candidate, testRecords(10, 8))
	require.NoError(t, err)
	assert.True(t, decision.Accepted, "0.85 - 0.80 > 0.02 must accept")
}

func TestDecide_ExactMarginRejects(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	prod := alwaysPositiveBundle(contracts.DefaultSchema(), "v1")
	require.NoError(t, reg.Put(ctx, prod))
	require.NoError(t, reg.SetCurrent(ctx, "v1"))

	// Binary-exact values so the boundary comparison is not at the mercy
	// of float rounding: production re-scores to 0.5, margin 0.25.
	e := newEvaluator(t, reg, 0.25)

	// Improvement exactly equal to the margin is not enough.
	candidate := contracts.ModelBundle{Metric: 0.75}
	decision, err := e.Decide(ctx, candidate, testRecords(10, 5))
	require.NoError(t, err)
	require.NotNil(t, decision.ProductionMetric)
	assert.Equal(t, 0.5, *decision.ProductionMetric)
	assert.False(t, decision.Accepted)
}

func TestRun_WritesDecisionArtifact(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	e := NewEvaluator(reg, contracts.DefaultSchema(), 0.02, store, logger.NewNop())

	candidate := contracts.ModelBundle{Metric: 0.9}
	decision, ref, err := e.Run(context.Background(), "run-1", candidate, testRecords(10, 8), contracts.ArtifactRef{})
	require.NoError(t, err)
	assert.True(t, decision.Accepted)

	var persisted contracts.Decision
	require.NoError(t, store.Read(ref, &persisted))
	assert.True(t, persisted.Accepted)
	assert.Equal(t, 0.9, persisted.CandidateMetric)
}
