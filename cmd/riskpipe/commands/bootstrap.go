package commands

import (
	"context"
	"fmt"

	"github.com/arkanlabs/riskpipe/internal/artifact"
	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/internal/pipeline"
	"github.com/arkanlabs/riskpipe/internal/predict"
	"github.com/arkanlabs/riskpipe/internal/registry"
	"github.com/arkanlabs/riskpipe/internal/runlog"
	"github.com/arkanlabs/riskpipe/internal/s0_ingest"
	"github.com/arkanlabs/riskpipe/internal/s1_validate"
	"github.com/arkanlabs/riskpipe/internal/s2_transform"
	"github.com/arkanlabs/riskpipe/internal/s3_train"
	"github.com/arkanlabs/riskpipe/internal/s4_evaluate"
	"github.com/arkanlabs/riskpipe/internal/s5_push"
	"github.com/arkanlabs/riskpipe/internal/source"
	"github.com/arkanlabs/riskpipe/pkg/config"
	"github.com/arkanlabs/riskpipe/pkg/database"
	"github.com/arkanlabs/riskpipe/pkg/logger"
	"github.com/arkanlabs/riskpipe/pkg/redis"
)

// stack holds every wired component a command may need.
type stack struct {
	cfg    *config.Config
	log    *logger.Logger
	schema contracts.Schema

	source   *source.MongoSource
	registry registry.Registry
	store    *artifact.Store
	db       *database.DB       // nil when run history is not configured
	runs     *runlog.Repository // nil when db is nil
	redis    *redis.Client

	orchestrator *pipeline.Orchestrator
	predict      *predict.Service
}

// buildStack loads configuration and wires the full component graph.
// withSource controls whether the document source is connected; serving-only
// commands skip it.
func buildStack(ctx context.Context, withSource bool) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	schema := contracts.DefaultSchema()
	if cfg.Pipeline.SchemaPath != "" {
		schema, err = contracts.LoadSchema(cfg.Pipeline.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		log.WithField("path", cfg.Pipeline.SchemaPath).Info("Loaded schema override")
	}

	reg, err := registry.NewS3Registry(ctx, cfg.Registry, log)
	if err != nil {
		return nil, fmt.Errorf("connect registry: %w", err)
	}

	store, err := artifact.NewStore(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	s := &stack{
		cfg:      cfg,
		log:      log,
		schema:   schema,
		registry: reg,
		store:    store,
		predict:  predict.NewService(reg, schema, log),
	}

	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.db = db
		s.runs = runlog.NewRepository(db.Pool)
		if err := s.runs.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate run history: %w", err)
		}
		log.Info("Run history storage connected")
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	s.redis = rdb

	if withSource {
		src, err := source.NewMongoSource(ctx, cfg.Source, log)
		if err != nil {
			return nil, fmt.Errorf("connect record source: %w", err)
		}
		s.source = src

		trainCfg := contracts.TrainingConfig{
			LearningRate: cfg.Model.LearningRate,
			Epochs:       cfg.Model.Epochs,
			L2Penalty:    cfg.Model.L2Penalty,
			Seed:         cfg.Pipeline.Seed,
		}

		var sink pipeline.RunSink
		if s.runs != nil {
			sink = s.runs
		}

		s.orchestrator = pipeline.NewOrchestrator(
			s0_ingest.NewIngestion(src, store, cfg.Pipeline.TestSplitRatio, cfg.Pipeline.Seed, log),
			s1_validate.NewValidator(schema, cfg.Pipeline.DriftThreshold, store, log),
			s2_transform.NewTransformer(schema, store, log),
			s3_train.NewTrainer(trainCfg, store, log),
			s4_evaluate.NewEvaluator(reg, schema, cfg.Pipeline.AcceptMargin, store, log),
			s5_push.NewPusher(reg, store, log),
			sink,
			pipeline.NewBroadcaster(),
			log,
		)
	}

	return s, nil
}

// Close releases every connection the stack holds.
func (s *stack) Close(ctx context.Context) {
	if s.source != nil {
		if err := s.source.Close(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to close record source")
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close redis client")
		}
	}
}
