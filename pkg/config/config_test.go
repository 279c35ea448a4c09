package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
environment: test
server:
  port: 8080
  read_timeout: 5s
  write_timeout: 10s
crypto:
  supported_currencies: [BTC, ETH]
ingest:
  backend: memory
  batch_size: 100
  batch_timeout: 2s
storage:
  backend: memory
scheduler:
  enabled: true
  interval: 1m
  default_date: yesterday
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 5*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, []string{"BTC", "ETH"}, c.Crypto.SupportedCurrencies)
	assert.Equal(t, "memory", c.Ingest.Backend)
	assert.Equal(t, 2*time.Second, c.Ingest.BatchTimeout)
	assert.Equal(t, "yesterday", c.Scheduler.DefaultDate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)
		return c
	}

	t.Run("missing environment", func(t *testing.T) {
		c := base()
		c.Environment = ""
		assert.ErrorContains(t, c.Validate(), "environment")
	})

	t.Run("bad storage backend", func(t *testing.T) {
		c := base()
		c.Storage.Backend = "sqlite"
		assert.ErrorContains(t, c.Validate(), "storage.backend")
	})

	t.Run("kafka ingest needs brokers", func(t *testing.T) {
		c := base()
		c.Ingest.Backend = "kafka"
		c.Kafka.Brokers = nil
		assert.ErrorContains(t, c.Validate(), "kafka.brokers")
	})

	t.Run("bad default date", func(t *testing.T) {
		c := base()
		c.Scheduler.DefaultDate = "tomorrow"
		assert.ErrorContains(t, c.Validate(), "scheduler.default_date")
	})

	t.Run("empty currencies", func(t *testing.T) {
		c := base()
		c.Crypto.SupportedCurrencies = nil
		assert.ErrorContains(t, c.Validate(), "supported_currencies")
	})
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres", c.Storage.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.True(t, c.Redis.Enabled)
}
