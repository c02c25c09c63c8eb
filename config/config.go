// Package config loads service configuration from file, environment and
// defaults via viper.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"phiguard/core"
)

// StoreBackend selects the key-value store implementation.
type StoreBackend string

const (
	// StoreRedis uses a Redis server for rules, baselines and anomalies
	StoreRedis StoreBackend = "redis"
	// StoreSQLite uses an embedded SQLite database file
	StoreSQLite StoreBackend = "sqlite"
	// StoreMemory keeps everything in process memory, lost on restart
	StoreMemory StoreBackend = "memory"
)

// Config holds all configuration for the PHIGuard service
type Config struct {
	Store struct {
		Backend StoreBackend `mapstructure:"backend"`
		Redis   struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
			PoolSize int    `mapstructure:"pool_size"`
		} `mapstructure:"redis"`
		SQLite struct {
			Path string `mapstructure:"path"`
		} `mapstructure:"sqlite"`
	} `mapstructure:"store"`

	Engine struct {
		// WindowSize is the capacity of the recent-event ring buffer
		WindowSize int `mapstructure:"window_size"`
		// SystemComponent tags every emitted anomaly
		SystemComponent string `mapstructure:"system_component"`
		// RulesFile optionally imports rules from a YAML file at startup
		RulesFile string `mapstructure:"rules_file"`
		// CooldownEntries bounds the cooldown tracker
		CooldownEntries int `mapstructure:"cooldown_entries"`
	} `mapstructure:"engine"`

	Baseline struct {
		// RefreshInterval is how often baselines are recomputed
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	} `mapstructure:"baseline"`

	Reporting struct {
		// IndexCap bounds the per-user and recent anomaly indexes
		IndexCap int `mapstructure:"index_cap"`
	} `mapstructure:"reporting"`

	Notify struct {
		Enabled        bool              `mapstructure:"enabled"`
		Type           string            `mapstructure:"type"` // webhook, log
		WebhookURL     string            `mapstructure:"webhook_url"`
		WebhookMethod  string            `mapstructure:"webhook_method"`
		WebhookHeaders map[string]string `mapstructure:"webhook_headers"`
		MinSeverity    string            `mapstructure:"min_severity"`
		RatePerMinute  int               `mapstructure:"rate_per_minute"`
	} `mapstructure:"notify"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Log struct {
		Level string `mapstructure:"level"` // debug, info, warn, error
	} `mapstructure:"log"`
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("store.backend", string(StoreMemory))
	// Use 127.0.0.1 instead of localhost to avoid IPv6 resolution issues on Windows
	viper.SetDefault("store.redis.addr", "127.0.0.1:6379")
	viper.SetDefault("store.redis.password", "")
	viper.SetDefault("store.redis.db", 0)
	viper.SetDefault("store.redis.pool_size", 10)
	viper.SetDefault("store.sqlite.path", "") // Empty = derive from data dir

	viper.SetDefault("engine.window_size", 1000)
	viper.SetDefault("engine.system_component", "access-monitor")
	viper.SetDefault("engine.rules_file", "")
	viper.SetDefault("engine.cooldown_entries", 10000)

	viper.SetDefault("baseline.refresh_interval", 24*time.Hour)

	viper.SetDefault("reporting.index_cap", 100)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.type", "log")
	viper.SetDefault("notify.webhook_url", "")
	viper.SetDefault("notify.webhook_method", "POST")
	viper.SetDefault("notify.min_severity", "")
	viper.SetDefault("notify.rate_per_minute", 60)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	viper.SetDefault("log.level", "info")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("PHIGUARD")
	viper.AutomaticEnv()

	_ = viper.BindEnv("store.backend", "PHIGUARD_STORE_BACKEND")
	_ = viper.BindEnv("store.redis.addr", "PHIGUARD_REDIS_ADDR")
	_ = viper.BindEnv("store.redis.password", "PHIGUARD_REDIS_PASSWORD")
	_ = viper.BindEnv("store.sqlite.path", "PHIGUARD_SQLITE_PATH")
	_ = viper.BindEnv("engine.rules_file", "PHIGUARD_RULES_FILE")
	_ = viper.BindEnv("notify.webhook_url", "PHIGUARD_WEBHOOK_URL")
	_ = viper.BindEnv("log.level", "PHIGUARD_LOG_LEVEL")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.Store.SQLite.Path == "" {
		return filepath.Join("./data", "phiguard.db")
	}
	return c.Store.SQLite.Path
}

// validateConfig validates the configuration for correctness
func validateConfig(config *Config) error {
	switch config.Store.Backend {
	case StoreRedis, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("invalid store backend %q: must be redis, sqlite or memory", config.Store.Backend)
	}

	if config.Store.Backend == StoreRedis {
		if _, _, err := net.SplitHostPort(config.Store.Redis.Addr); err != nil {
			return fmt.Errorf("invalid Redis address %q: %w", config.Store.Redis.Addr, err)
		}
	}

	if config.Engine.WindowSize <= 0 {
		return fmt.Errorf("engine.window_size must be positive, got %d", config.Engine.WindowSize)
	}
	if config.Engine.CooldownEntries <= 0 {
		return fmt.Errorf("engine.cooldown_entries must be positive, got %d", config.Engine.CooldownEntries)
	}
	if config.Baseline.RefreshInterval <= 0 {
		return fmt.Errorf("baseline.refresh_interval must be positive, got %s", config.Baseline.RefreshInterval)
	}
	if config.Reporting.IndexCap <= 0 {
		return fmt.Errorf("reporting.index_cap must be positive, got %d", config.Reporting.IndexCap)
	}

	if config.Notify.Enabled && config.Notify.Type == "webhook" && config.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.type is webhook")
	}
	if config.Notify.MinSeverity != "" && !core.Severity(config.Notify.MinSeverity).Valid() {
		return fmt.Errorf("invalid notify.min_severity %q", config.Notify.MinSeverity)
	}

	if config.Metrics.Enabled && (config.Metrics.Port <= 0 || config.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be in 1-65535, got %d", config.Metrics.Port)
	}

	return nil
}
