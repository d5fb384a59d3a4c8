package source

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/pkg/config"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// MongoSource pulls the full application record set from a MongoDB
// collection. Transient failures are retried a bounded number of times;
// exhaustion surfaces as SourceUnavailable on the ingestion stage.
type MongoSource struct {
	client       *mongo.Client
	database     string
	collection   string
	queryTimeout time.Duration
	maxRetries   int
	logger       *logger.Logger
}

// NewMongoSource connects to the document database and verifies the
// connection with a ping.
func NewMongoSource(ctx context.Context, cfg config.SourceConfig, log *logger.Logger) (*MongoSource, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MONGO_URI is not set")
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoSource{
		client:       client,
		database:     cfg.Database,
		collection:   cfg.Collection,
		queryTimeout: cfg.QueryTimeout,
		maxRetries:   cfg.MaxRetries,
		logger:       log,
	}, nil
}

// FetchAll returns every record in the configured collection.
func (s *MongoSource) FetchAll(ctx context.Context) ([]contracts.Record, error) {
	var records []contracts.Record
	var err error

	delay := 1 * time.Second
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		records, err = s.fetchOnce(ctx)
		if err == nil {
			return records, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}

		s.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Retrying source fetch")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("fetch records after %d attempts: %w", s.maxRetries+1, err)
}

func (s *MongoSource) fetchOnce(ctx context.Context) ([]contracts.Record, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	coll := s.client.Database(s.database).Collection(s.collection)

	cursor, err := coll.Find(queryCtx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	defer cursor.Close(queryCtx)

	var records []contracts.Record
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	return records, nil
}

// Close disconnects the underlying client.
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
