package dbosruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/framecompare/internal/config"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://localhost/dbos"}
	cfg.WithDefaults()

	assert.Equal(t, DefaultAppName, cfg.AppName)
	assert.Equal(t, DefaultQueueName, cfg.QueueName)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)

	cfg = Config{QueueName: "q", Concurrency: 3}
	cfg.WithDefaults()
	assert.Equal(t, "q", cfg.QueueName)
	assert.Equal(t, 3, cfg.Concurrency)
}

func TestNewRuntimeNeedsDatabase(t *testing.T) {
	_, err := NewRuntime(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(&config.Config{
		DBOSDatabaseURL: "postgres://localhost/dbos",
		DBOSQueueName:   "nightly",
		DBOSConcurrency: 4,
	}, "framecompare-worker")

	assert.Equal(t, Config{
		DatabaseURL: "postgres://localhost/dbos",
		AppName:     "framecompare-worker",
		QueueName:   "nightly",
		Concurrency: 4,
	}, cfg)
}
