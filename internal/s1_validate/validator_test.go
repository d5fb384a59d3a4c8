package s1_validate

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

func validRecord(id int64) contracts.Record {
	return contracts.Record{
		ID:                 id,
		Gender:             "Male",
		Age:                35,
		DrivingLicense:     1,
		RegionCode:         28,
		PreviouslyInsured:  0,
		VehicleAge:         "1-2 Year",
		VehicleDamage:      "Yes",
		AnnualPremium:      32000,
		PolicySalesChannel: 26,
		Vintage:            120,
		Response:           1,
	}
}

func validSplit(n int) contracts.DatasetSplit {
	var split contracts.DatasetSplit
	for i := 0; i < n; i++ {
		r := validRecord(int64(i + 1))
		if i%5 == 0 {
			split.Test = append(split.Test, r)
		} else {
			split.Train = append(split.Train, r)
		}
	}
	return split
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewValidator(contracts.DefaultSchema(), 0.1, store, logger.NewNop())
}

func TestCheck_ValidSplitPasses(t *testing.T) {
	v := newValidator(t)

	verdict := v.Check(validSplit(50))
	assert.True(t, verdict.Passed)
	assert.Empty(t, verdict.Violations)
}

func TestCheck_Deterministic(t *testing.T) {
	v := newValidator(t)
	split := validSplit(50)
	split.Train[3].Gender = "Other"
	split.Train[7].Age = 250

	a := v.Check(split)
	b := v.Check(split)
	assert.Equal(t, a, b)
}

func TestCheck_DomainViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*contracts.Record)
		column string
	}{
		{"gender outside domain", func(r *contracts.Record) { r.Gender = "Unknown" }, contracts.ColGender},
		{"age above max", func(r *contracts.Record) { r.Age = 150 }, contracts.ColAge},
		{"age below min", func(r *contracts.Record) { r.Age = 5 }, contracts.ColAge},
		{"binary outside 0/1", func(r *contracts.Record) { r.DrivingLicense = 2 }, contracts.ColDrivingLicense},
		{"vehicle age outside domain", func(r *contracts.Record) { r.VehicleAge = "3 Years" }, contracts.ColVehicleAge},
		{"empty required categorical", func(r *contracts.Record) { r.VehicleDamage = "" }, contracts.ColVehicleDamage},
		{"premium negative", func(r *contracts.Record) { r.AnnualPremium = -10 }, contracts.ColAnnualPremium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t)
			split := validSplit(20)
			tt.mutate(&split.Train[0])

			verdict := v.Check(split)
			assert.False(t, verdict.Passed)
			require.NotEmpty(t, verdict.Violations)
			assert.Equal(t, tt.column, verdict.Violations[0].Column)
			assert.Equal(t, contracts.ErrDomainViolation, verdict.Violations[0].Rule)
		})
	}
}

func TestCheck_TypeMismatchOnNonFinite(t *testing.T) {
	v := newValidator(t)
	split := validSplit(20)
	split.Test[0].AnnualPremium = math.NaN()

	verdict := v.Check(split)
	assert.False(t, verdict.Passed)
	require.NotEmpty(t, verdict.Violations)
	assert.Equal(t, contracts.ErrTypeMismatch, verdict.Violations[0].Rule)
}

func TestCheck_MissingColumnBeforeOtherRules(t *testing.T) {
	schema := contracts.DefaultSchema()
	schema.Columns = append(schema.Columns, contracts.ColumnSpec{
		Name: "Credit_Score", Type: contracts.ColumnNumeric, Required: true, Min: 0, Max: 1000,
	})

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	v := NewValidator(schema, 0.1, store, logger.NewNop())

	verdict := v.Check(validSplit(10))
	assert.False(t, verdict.Passed)
	require.Len(t, verdict.Violations, 1)
	assert.Equal(t, "Credit_Score", verdict.Violations[0].Column)
	assert.Equal(t, contracts.ErrMissingColumn, verdict.Violations[0].Rule)
}

func TestCheck_DriftIsWarningNotFailure(t *testing.T) {
	v := newValidator(t)

	// Shift every numeric value in the test partition far away from train.
	split := validSplit(100)
	for i := range split.Test {
		split.Test[i].Age = 90
		split.Test[i].AnnualPremium = 500000
		split.Test[i].Vintage = 299
	}

	verdict := v.Check(split)
	assert.True(t, verdict.Passed, "drift must never fail the run")
	assert.NotEmpty(t, verdict.Warnings)

	cols := make(map[string]bool)
	for _, w := range verdict.Warnings {
		cols[w.Column] = true
		assert.Greater(t, w.Statistic, w.Threshold)
	}
	assert.True(t, cols[contracts.ColAge])
}

func TestRun_FailedVerdictHaltsWithArtifact(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	v := NewValidator(contracts.DefaultSchema(), 0.1, store, logger.NewNop())

	split := validSplit(10)
	split.Train[0].Gender = "Unknown"

	upstream := contracts.ArtifactRef{RunID: "run-1", Stage: contracts.StageIngestion}
	verdict, ref, err := v.Run(context.Background(), "run-1", split, upstream)
	require.Error(t, err)
	assert.Equal(t, contracts.ErrDomainViolation, contracts.KindOf(err))
	assert.False(t, verdict.Passed)

	// Verdict artifact is still written for diagnosis.
	var persisted contracts.Verdict
	require.NoError(t, store.Read(ref, &persisted))
	assert.False(t, persisted.Passed)
}

func TestRun_PassWritesVerdict(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	v := NewValidator(contracts.DefaultSchema(), 0.1, store, logger.NewNop())

	upstream := contracts.ArtifactRef{RunID: "run-1", Stage: contracts.StageIngestion}
	verdict, ref, err := v.Run(context.Background(), "run-1", validSplit(20), upstream)
	require.NoError(t, err)
	assert.True(t, verdict.Passed)

	meta, err := store.ReadMeta(ref)
	require.NoError(t, err)
	assert.Equal(t, "true", meta.Summary["passed"])
}
