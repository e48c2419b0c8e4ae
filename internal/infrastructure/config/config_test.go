package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)

	assert.Equal(t, 100, cfg.Audit.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Audit.FlushInterval)
	assert.Equal(t, 5*time.Second, cfg.Audit.WriteTimeout)

	assert.Equal(t, 60*time.Second, cfg.Metrics.CacheTTL)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)

	assert.Equal(t, time.Minute, cfg.Alerting.EvaluationInterval)
	assert.Equal(t, 1.0, cfg.Alerting.NotifyRatePerSec)
	assert.Equal(t, 5, cfg.Alerting.NotifyBurst)

	assert.Equal(t, 30*time.Second, cfg.Shutdown.Timeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GOVERNANCE_ENVIRONMENT", "production")
	t.Setenv("GOVERNANCE_DATABASE_URL", "postgres://deploy:secret@db:5432/governance")
	t.Setenv("GOVERNANCE_REDIS_URL", "redis:6379")
	t.Setenv("GOVERNANCE_REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "postgres://deploy:secret@db:5432/governance", cfg.Database.URL)
	assert.Equal(t, "redis:6379", cfg.Redis.URL)
	assert.Equal(t, 3, cfg.Redis.DB)

	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Audit.BatchSize)
}
