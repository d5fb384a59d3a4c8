package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 0.2, cfg.Pipeline.TestSplitRatio)
	assert.Equal(t, 0.02, cfg.Pipeline.AcceptMargin)
	assert.Equal(t, 0.1, cfg.Pipeline.DriftThreshold)
	assert.Equal(t, int64(42), cfg.Pipeline.Seed)
	assert.Equal(t, 200, cfg.Model.Epochs)
	assert.Equal(t, "artifacts", cfg.ArtifactDir)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("TEST_SPLIT_RATIO", "0.3")
	t.Setenv("ACCEPT_MARGIN", "0.05")
	t.Setenv("RANDOM_SEED", "7")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("REGISTRY_BUCKET", "models-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 0.3, cfg.Pipeline.TestSplitRatio)
	assert.Equal(t, 0.05, cfg.Pipeline.AcceptMargin)
	assert.Equal(t, int64(7), cfg.Pipeline.Seed)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Source.URI)
	assert.Equal(t, "models-test", cfg.Registry.Bucket)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad env", "ENV", "qa"},
		{"split ratio zero", "TEST_SPLIT_RATIO", "0"},
		{"split ratio one", "TEST_SPLIT_RATIO", "1"},
		{"split ratio above one", "TEST_SPLIT_RATIO", "1.5"},
		{"negative margin", "ACCEPT_MARGIN", "-0.01"},
		{"drift threshold zero", "DRIFT_THRESHOLD", "0"},
		{"zero learning rate", "MODEL_LEARNING_RATE", "0"},
		{"zero epochs", "MODEL_EPOCHS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedNumberFallsBackToDefault(t *testing.T) {
	t.Setenv("MODEL_EPOCHS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Model.Epochs)
}
