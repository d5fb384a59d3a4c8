package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/internal/s0_ingest"
	"github.com/arkanlabs/riskpipe/internal/s1_validate"
	"github.com/arkanlabs/riskpipe/internal/s2_transform"
	"github.com/arkanlabs/riskpipe/internal/s3_train"
	"github.com/arkanlabs/riskpipe/internal/s4_evaluate"
	"github.com/arkanlabs/riskpipe/internal/s5_push"
	"github.com/arkanlabs/riskpipe/internal/source"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// makeRecords builds schema-valid rows with a learnable label: damaged,
// uninsured vehicles respond.
func makeRecords(n int) []contracts.Record {
	genders := []string{"Male", "Female"}
	vehicleAges := []string{"< 1 Year", "1-2 Year", "> 2 Years"}

	records := make([]contracts.Record, n)
	for i := 0; i < n; i++ {
		damage := "No"
		if i%2 == 0 {
			damage = "Yes"
		}
		insured := float64(i % 2)
		response := 0.0
		if damage == "Yes" && insured == 0 {
			response = 1
		}
		records[i] = contracts.Record{
			ID:                 int64(i + 1),
			Gender:             genders[i%2],
			Age:                float64(20 + i%50),
			DrivingLicense:     1,
			RegionCode:         float64(i % 53),
			PreviouslyInsured:  insured,
			VehicleAge:         vehicleAges[i%3],
			VehicleDamage:      damage,
			AnnualPremium:      float64(2000 + i),
			PolicySalesChannel: float64(i % 200),
			Vintage:            float64(i % 300),
			Response:           response,
		}
	}
	return records
}

// memorySink captures persisted run summaries.
type memorySink struct {
	saved []contracts.RunSummary
}

func (s *memorySink) Save(ctx context.Context, summary contracts.RunSummary) error {
	s.saved = append(s.saved, summary)
	return nil
}

// blockingSource parks FetchAll until released, for exclusion tests.
type blockingSource struct {
	records []contracts.Record
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) FetchAll(ctx context.Context) ([]contracts.Record, error) {
	close(s.started)
	<-s.release
	return s.records, nil
}

func newTestOrchestrator(t *testing.T, src source.RecordSource, reg registry.Registry, sink RunSink) *Orchestrator {
	t.Helper()

	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	schema := contracts.DefaultSchema()
	log := logger.NewNop()
	trainCfg := contracts.TrainingConfig{LearningRate: 0.1, Epochs: 200, Seed: 42}

	return NewOrchestrator(
		s0_ingest.NewIngestion(src, store, 0.2, 42, log),
		s1_validate.NewValidator(schema, 0.1, store, log),
		s2_transform.NewTransformer(schema, store, log),
		s3_train.NewTrainer(trainCfg, store, log),
		s4_evaluate.NewEvaluator(reg, schema, 0.02, store, log),
		s5_push.NewPusher(reg, store, log),
		sink,
		NewBroadcaster(),
		log,
	)
}

func TestRun_BootstrapPromotesFirstModel(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	sink := &memorySink{}
	o := newTestOrchestrator(t, source.NewMemorySource(makeRecords(1000)), reg, sink)

	summary, err := o.Run(ctx)
	require.NoError(t, err)

	assert.False(t, summary.Failed())
	assert.Equal(t, contracts.StagePusher, summary.RanToStage)
	require.NotNil(t, summary.Accepted)
	assert.True(t, *summary.Accepted)
	require.NotNil(t, summary.Metric)
	assert.NotEmpty(t, summary.Version)
	assert.Len(t, summary.Artifacts, 6, "one artifact per stage")

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, summary.Version, version)

	require.Len(t, sink.saved, 1)
	assert.Equal(t, summary.RunID, sink.saved[0].RunID)
}

func TestRun_IdenticalRetrainIsRejected(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	records := makeRecords(1000)

	first, err := newTestOrchestrator(t, source.NewMemorySource(records), reg, nil).Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first.Version)

	// Same data, same seed: the candidate ties production exactly, and a
	// tie never clears a positive margin.
	second, err := newTestOrchestrator(t, source.NewMemorySource(records), reg, nil).Run(ctx)
	require.NoError(t, err)

	assert.False(t, second.Failed())
	assert.Equal(t, contracts.StageEvaluation, second.RanToStage)
	require.NotNil(t, second.Accepted)
	assert.False(t, *second.Accepted)
	assert.Empty(t, second.Version)

	version, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.Version, version, "rejection must not move production")
}

func TestRun_EmptySourceFailsIngestion(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	sink := &memorySink{}
	o := newTestOrchestrator(t, source.NewMemorySource(nil), reg, sink)

	summary, err := o.Run(ctx)
	require.Error(t, err)

	assert.True(t, summary.Failed())
	assert.Equal(t, contracts.ErrEmptyDataset, summary.ErrorKind)
	assert.Equal(t, contracts.StageIngestion, summary.RanToStage)
	assert.Nil(t, summary.Accepted)

	_, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a failed run must not promote anything")

	// Failed runs are persisted too.
	require.Len(t, sink.saved, 1)
	assert.Equal(t, string(contracts.ErrEmptyDataset), string(sink.saved[0].ErrorKind))
}

func TestRun_DomainViolationHaltsAtValidation(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()

	records := makeRecords(100)
	records[7].Age = 150 // outside declared bounds

	o := newTestOrchestrator(t, source.NewMemorySource(records), reg, nil)
	summary, err := o.Run(ctx)
	require.Error(t, err)

	assert.Equal(t, contracts.ErrDomainViolation, summary.ErrorKind)
	assert.Equal(t, contracts.StageValidation, summary.RanToStage)

	// The ingestion artifact and the failed verdict artifact both survive.
	assert.Len(t, summary.Artifacts, 2)

	_, ok, err := reg.GetCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_ConcurrentRunIsRefused(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	src := &blockingSource{
		records: makeRecords(100),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o := newTestOrchestrator(t, src, reg, nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx)
		done <- err
	}()

	select {
	case <-src.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached the source")
	}

	_, err := o.Run(ctx)
	assert.ErrorIs(t, err, ErrRunActive)

	close(src.release)
	require.NoError(t, <-done)
}

func TestRun_PublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemoryRegistry()
	o := newTestOrchestrator(t, source.NewMemorySource(makeRecords(200)), reg, nil)

	events, cancel := o.Events().Subscribe()
	defer cancel()

	summary, err := o.Run(ctx)
	require.NoError(t, err)

	var collected []Event
	for len(events) > 0 {
		collected = append(collected, <-events)
	}
	require.NotEmpty(t, collected)

	assert.Equal(t, EventRunStarted, collected[0].Kind)
	assert.Equal(t, EventRunFinished, collected[len(collected)-1].Kind)
	for _, ev := range collected {
		assert.Equal(t, summary.RunID, ev.RunID)
	}

	completed := make(map[contracts.Stage]bool)
	for _, ev := range collected {
		if ev.Kind == EventStageCompleted {
			completed[ev.Stage] = true
		}
	}
	for _, stage := range contracts.AllStages() {
		assert.True(t, completed[stage], fmt.Sprintf("missing completion event for %s", stage))
	}
}
