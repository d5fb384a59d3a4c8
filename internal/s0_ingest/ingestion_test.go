package s0_ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/source"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

func makeRecords(n int) []contracts.Record {
	records := make([]contracts.Record, n)
	for i := range records {
		records[i] = contracts.Record{ID: int64(i + 1), Age: 30, Gender: "Male"}
	}
	return records
}

func TestSplit_SizesAndDisjointness(t *testing.T) {
	tests := []struct {
		n        int
		ratio    float64
		wantTest int
	}{
		{1000, 0.2, 200},
		{1000, 0.3, 300},
		{100, 0.25, 25},
		{10, 0.5, 5},
		{3, 0.1, 1}, // at least one test row
		{7, 0.33, 2},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d_r=%v", tt.n, tt.ratio), func(t *testing.T) {
			split := Split(makeRecords(tt.n), tt.ratio, 42)

			assert.Len(t, split.Test, tt.wantTest)
			assert.Equal(t, tt.n, len(split.Train)+len(split.Test))

			// Disjoint: no ID appears in both partitions.
			seen := make(map[int64]bool)
			for _, r := range split.Train {
				seen[r.ID] = true
			}
			for _, r := range split.Test {
				assert.False(t, seen[r.ID], "record %d in both partitions", r.ID)
				seen[r.ID] = true
			}

			// Union equals the full extract.
			assert.Len(t, seen, tt.n)
		})
	}
}

func TestSplit_Reproducible(t *testing.T) {
	records := makeRecords(500)

	a := Split(records, 0.2, 7)
	b := Split(records, 0.2, 7)
	assert.Equal(t, a, b)

	c := Split(records, 0.2, 8)
	assert.NotEqual(t, a.Test, c.Test, "different seeds should shuffle differently")
}

func TestIngestion_Run(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	src := source.NewMemorySource(makeRecords(1000))
	ing := NewIngestion(src, store, 0.2, 42, logger.NewNop())

	split, ref, err := ing.Run(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, split.Train, 800)
	assert.Len(t, split.Test, 200)

	// The split artifact must be readable downstream.
	var persisted contracts.DatasetSplit
	require.NoError(t, store.Read(ref, &persisted))
	assert.Len(t, persisted.Train, 800)
	assert.Len(t, persisted.Test, 200)
}

func TestIngestion_EmptyDataset(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	src := source.NewMemorySource(nil)
	ing := NewIngestion(src, store, 0.2, 42, logger.NewNop())

	_, _, err = ing.Run(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, contracts.ErrEmptyDataset, contracts.KindOf(err))
}

func TestIngestion_SourceUnavailable(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	src := &source.MemorySource{Err: fmt.Errorf("connection refused")}
	ing := NewIngestion(src, store, 0.2, 42, logger.NewNop())

	_, _, err = ing.Run(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, contracts.ErrSourceUnavailable, contracts.KindOf(err))

	stage, ok := contracts.StageOf(err)
	require.True(t, ok)
	assert.Equal(t, contracts.StageIngestion, stage)
}
