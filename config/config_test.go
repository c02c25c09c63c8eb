package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns a valid Config for testing
func newTestConfig() *Config {
	var c Config
	c.Store.Backend = StoreMemory
	c.Store.Redis.Addr = "127.0.0.1:6379"
	c.Engine.WindowSize = 1000
	c.Engine.SystemComponent = "access-monitor"
	c.Engine.CooldownEntries = 10000
	c.Baseline.RefreshInterval = 24 * time.Hour
	c.Reporting.IndexCap = 100
	c.Metrics.Enabled = true
	c.Metrics.Port = 9090
	c.Log.Level = "info"
	return &c
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validateConfig(newTestConfig()))
}

func TestValidateConfigRejectsUnknownBackend(t *testing.T) {
	cfg := newTestConfig()
	cfg.Store.Backend = "postgres"
	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store backend")
}

func TestValidateConfigRejectsBadRedisAddr(t *testing.T) {
	cfg := newTestConfig()
	cfg.Store.Backend = StoreRedis
	cfg.Store.Redis.Addr = "not-an-address"
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsNonPositiveWindow(t *testing.T) {
	cfg := newTestConfig()
	cfg.Engine.WindowSize = 0
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigRejectsWebhookWithoutURL(t *testing.T) {
	cfg := newTestConfig()
	cfg.Notify.Enabled = true
	cfg.Notify.Type = "webhook"
	assert.Error(t, validateConfig(cfg))

	cfg.Notify.WebhookURL = "https://hooks.example.com/phi"
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfigRejectsBadMinSeverity(t *testing.T) {
	cfg := newTestConfig()
	cfg.Notify.MinSeverity = "urgent"
	assert.Error(t, validateConfig(cfg))

	cfg.Notify.MinSeverity = "high"
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfigRejectsBadMetricsPort(t *testing.T) {
	cfg := newTestConfig()
	cfg.Metrics.Port = 70000
	assert.Error(t, validateConfig(cfg))
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "127.0.0.1:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 1000, cfg.Engine.WindowSize)
	assert.Equal(t, "access-monitor", cfg.Engine.SystemComponent)
	assert.Equal(t, 24*time.Hour, cfg.Baseline.RefreshInterval)
	assert.Equal(t, 100, cfg.Reporting.IndexCap)
	assert.Equal(t, "log", cfg.Notify.Type)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PHIGUARD_STORE_BACKEND", "sqlite")
	t.Setenv("PHIGUARD_SQLITE_PATH", "/tmp/test-phiguard.db")
	t.Setenv("PHIGUARD_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/test-phiguard.db", cfg.GetSQLitePath())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestGetSQLitePathDefault(t *testing.T) {
	cfg := newTestConfig()
	assert.Equal(t, "data/phiguard.db", cfg.GetSQLitePath())
}
