package s0_ingest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/source"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// Ingestion pulls the full record set from the source, splits it into
// disjoint train/test partitions with a seeded shuffle, and writes the split
// as the S0 artifact before returning.
type Ingestion struct {
	source source.RecordSource
	store  *artifact.Store
	ratio  float64
	seed   int64
	logger *logger.Logger
}

// NewIngestion creates the ingestion stage.
func NewIngestion(src source.RecordSource, store *artifact.Store, ratio float64, seed int64, log *logger.Logger) *Ingestion {
	return &Ingestion{
		source: src,
		store:  store,
		ratio:  ratio,
		seed:   seed,
		logger: log,
	}
}

// Run executes the stage for one pipeline run.
func (i *Ingestion) Run(ctx context.Context, runID string) (contracts.DatasetSplit, contracts.ArtifactRef, error) {
	records, err := i.source.FetchAll(ctx)
	if err != nil {
		return contracts.DatasetSplit{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageIngestion, contracts.ErrSourceUnavailable,
				fmt.Errorf("fetch records: %w", err))
	}

	if len(records) == 0 {
		return contracts.DatasetSplit{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageIngestion, contracts.ErrEmptyDataset,
				fmt.Errorf("source returned zero records"))
	}

	split := Split(records, i.ratio, i.seed)

	i.logger.WithFields(map[string]interface{}{
		"run_id":     runID,
		"total_rows": len(records),
		"train_rows": len(split.Train),
		"test_rows":  len(split.Test),
	}).Info("Dataset ingested and split")

	ref, err := i.store.Write(runID, contracts.StageIngestion, split, nil, map[string]string{
		"total_rows": strconv.Itoa(len(records)),
		"train_rows": strconv.Itoa(len(split.Train)),
		"test_rows":  strconv.Itoa(len(split.Test)),
	})
	if err != nil {
		return contracts.DatasetSplit{}, contracts.ArtifactRef{},
			contracts.NewStageError(contracts.StageIngestion, contracts.ErrSourceUnavailable,
				fmt.Errorf("persist split artifact: %w", err))
	}

	return split, ref, nil
}

// Split partitions records into disjoint train/test sets whose union is the
// full extract. Identical inputs, ratio, and seed always yield the same
// partition.
func Split(records []contracts.Record, ratio float64, seed int64) contracts.DatasetSplit {
	n := len(records)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(a, b int) {
		indices[a], indices[b] = indices[b], indices[a]
	})

	testSize := int(math.Round(float64(n) * ratio))
	if testSize < 1 && n > 1 {
		testSize = 1
	}
	if testSize >= n {
		testSize = n - 1
	}

	test := make([]contracts.Record, 0, testSize)
	train := make([]contracts.Record, 0, n-testSize)
	for pos, idx := range indices {
		if pos < testSize {
			test = append(test, records[idx])
		} else {
			train = append(train, records[idx])
		}
	}

	return contracts.DatasetSplit{Train: train, Test: test, Ratio: ratio, Seed: seed}
}
