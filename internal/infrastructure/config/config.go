package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`

	Audit    AuditConfig    `koanf:"audit"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Alerting AlertingConfig `koanf:"alerting"`
	Shutdown ShutdownConfig `koanf:"shutdown"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL      string `koanf:"url"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuditConfig struct {
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
}

type MetricsConfig struct {
	CacheTTL   time.Duration `koanf:"cache_ttl"`
	ListenAddr string        `koanf:"listen_addr"`
}

type AlertingConfig struct {
	EvaluationInterval time.Duration `koanf:"evaluation_interval"`
	NotifyRatePerSec   float64       `koanf:"notify_rate_per_sec"`
	NotifyBurst        int           `koanf:"notify_burst"`
	WebhookURL         string        `koanf:"webhook_url"`
}

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		Audit: AuditConfig{
			BatchSize:     100,
			FlushInterval: 5 * time.Second,
			WriteTimeout:  5 * time.Second,
		},
		Metrics: MetricsConfig{
			CacheTTL:   60 * time.Second,
			ListenAddr: ":9090",
		},
		Alerting: AlertingConfig{
			EvaluationInterval: time.Minute,
			NotifyRatePerSec:   1,
			NotifyBurst:        5,
		},
		Shutdown: ShutdownConfig{
			Timeout: 30 * time.Second,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := k.Load(file.Provider("configs/config.yaml"), yaml.Parser()); err != nil {
		// Config file is optional
	}

	// Environment variables override everything
	if err := k.Load(env.Provider("GOVERNANCE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "GOVERNANCE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
