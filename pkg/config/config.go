package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every recognized option is enumerated here and read exactly once at load
// time; no other package calls os.Getenv.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Record source (document database)
	Source SourceConfig

	// Model registry (object store)
	Registry RegistryConfig

	// Artifact store
	ArtifactDir string

	// Training pipeline
	Pipeline PipelineConfig

	// Model hyperparameters
	Model ModelConfig

	// Run history (optional)
	Database DatabaseConfig

	// Redis (optional, prediction rate limiting)
	Redis RedisConfig

	// Scheduler
	RetrainSchedule string

	// Prediction surface
	PredictRateLimit  int
	PredictRateWindow time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// SourceConfig holds document-database connection settings.
type SourceConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	MaxRetries     int
}

// RegistryConfig holds object-store registry settings. AccessKey/SecretKey
// are for MinIO-style endpoints; on AWS the default credential chain applies.
type RegistryConfig struct {
	Bucket     string
	Prefix     string
	Region     string
	Endpoint   string // non-empty for MinIO-style deployments
	AccessKey  string
	SecretKey  string
	MaxRetries int
}

// PipelineConfig holds training-pipeline behavior settings.
type PipelineConfig struct {
	TestSplitRatio float64
	AcceptMargin   float64
	DriftThreshold float64
	Seed           int64
	SchemaPath     string // optional YAML schema override
}

// ModelConfig holds estimator hyperparameters.
type ModelConfig struct {
	LearningRate float64
	Epochs       int
	L2Penalty    float64
}

// DatabaseConfig holds PostgreSQL settings for the run-history store.
// The store is optional: an empty URL disables it.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis settings for distributed rate limiting.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Load reads configuration from environment variables.
// This function is the only caller of os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Source: SourceConfig{
			URI:            getEnv("MONGO_URI", ""),
			Database:       getEnv("MONGO_DATABASE", "insurance"),
			Collection:     getEnv("MONGO_COLLECTION", "applications"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", "10s"),
			QueryTimeout:   getEnvAsDuration("MONGO_QUERY_TIMEOUT", "60s"),
			MaxRetries:     getEnvAsInt("MONGO_MAX_RETRIES", 3),
		},

		Registry: RegistryConfig{
			Bucket:     getEnv("REGISTRY_BUCKET", ""),
			Prefix:     getEnv("REGISTRY_PREFIX", "riskpipe"),
			Region:     getEnv("AWS_REGION", "us-east-1"),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			MaxRetries: getEnvAsInt("REGISTRY_MAX_RETRIES", 3),
		},

		ArtifactDir: getEnv("ARTIFACT_DIR", "artifacts"),

		Pipeline: PipelineConfig{
			TestSplitRatio: getEnvAsFloat("TEST_SPLIT_RATIO", 0.2),
			AcceptMargin:   getEnvAsFloat("ACCEPT_MARGIN", 0.02),
			DriftThreshold: getEnvAsFloat("DRIFT_THRESHOLD", 0.1),
			Seed:           int64(getEnvAsInt("RANDOM_SEED", 42)),
			SchemaPath:     getEnv("SCHEMA_PATH", ""),
		},

		Model: ModelConfig{
			LearningRate: getEnvAsFloat("MODEL_LEARNING_RATE", 0.1),
			Epochs:       getEnvAsInt("MODEL_EPOCHS", 200),
			L2Penalty:    getEnvAsFloat("MODEL_L2_PENALTY", 0.001),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		RetrainSchedule: getEnv("RETRAIN_SCHEDULE", "0 0 2 * * *"),

		PredictRateLimit:  getEnvAsInt("PREDICT_RATE_LIMIT", 100),
		PredictRateWindow: getEnvAsDuration("PREDICT_RATE_WINDOW", "1m"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks configuration values every command depends on.
// Subsystem-specific requirements (source URI, registry bucket) are checked
// by the constructors that need them, so read-only commands still start.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.TestSplitRatio <= 0 || c.Pipeline.TestSplitRatio >= 1 {
		return fmt.Errorf("TEST_SPLIT_RATIO must be in (0,1), got %v", c.Pipeline.TestSplitRatio)
	}

	if c.Pipeline.AcceptMargin < 0 {
		return fmt.Errorf("ACCEPT_MARGIN must be non-negative, got %v", c.Pipeline.AcceptMargin)
	}

	if c.Pipeline.DriftThreshold <= 0 || c.Pipeline.DriftThreshold > 1 {
		return fmt.Errorf("DRIFT_THRESHOLD must be in (0,1], got %v", c.Pipeline.DriftThreshold)
	}

	if c.Model.LearningRate <= 0 {
		return fmt.Errorf("MODEL_LEARNING_RATE must be positive, got %v", c.Model.LearningRate)
	}

	if c.Model.Epochs <= 0 {
		return fmt.Errorf("MODEL_EPOCHS must be positive, got %d", c.Model.Epochs)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
