// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Server struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AzureDevOps struct {
	OrgURL     string `mapstructure:"org_url"`
	Project    string `mapstructure:"project"`
	APIVersion string `mapstructure:"api_version"`
}

type Ingestion struct {
	MaxConcurrency      int           `mapstructure:"max_concurrency"`
	DefaultLookbackDays int           `mapstructure:"default_lookback_days"`
	HistoryLimit        int           `mapstructure:"history_limit"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	BatchTimeout        time.Duration `mapstructure:"batch_timeout"`
	TotalTimeout        time.Duration `mapstructure:"total_timeout"`
	RateLimitPerSecond  float64       `mapstructure:"rate_limit_per_second"`
}

type Cache struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type Events struct {
	NATSURL       string `mapstructure:"nats_url"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Endpoint         string  `mapstructure:"endpoint"`
	Environment      string  `mapstructure:"environment"`
	SamplingStrategy string  `mapstructure:"sampling_strategy"`
	SamplingRate     float64 `mapstructure:"sampling_rate"`
}

type Observability struct {
	MetricsPort int           `mapstructure:"metrics_port"`
	LogLevel    string        `mapstructure:"log_level"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

type Config struct {
	Server        Server        `mapstructure:"server"`
	AzureDevOps   AzureDevOps   `mapstructure:"azuredevops"`
	Ingestion     Ingestion     `mapstructure:"ingestion"`
	Cache         Cache         `mapstructure:"cache"`
	Events        Events        `mapstructure:"events"`
	Observability Observability `mapstructure:"observability"`
	DataDir       string        `mapstructure:"data_dir"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			ListenAddr:   ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		AzureDevOps: AzureDevOps{
			APIVersion: "7.1",
		},
		Ingestion: Ingestion{
			MaxConcurrency:      5,
			DefaultLookbackDays: 90,
			HistoryLimit:        0,
			RequestTimeout:      30 * time.Second,
			BatchTimeout:        60 * time.Second,
			TotalTimeout:        10 * time.Minute,
			RateLimitPerSecond:  10,
		},
		Cache: Cache{
			TTL: 5 * time.Minute,
		},
		Observability: Observability{
			MetricsPort: 9090,
			LogLevel:    "info",
			Tracing:     TracingConfig{Enabled: false, SamplingStrategy: "probabilistic", SamplingRate: 0.1},
		},
		DataDir: "./data",
	}
}

// Load reads configuration from YAML file and env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("server.listen_addr", def.Server.ListenAddr)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)

	v.SetDefault("azuredevops.api_version", def.AzureDevOps.APIVersion)

	v.SetDefault("ingestion.max_concurrency", def.Ingestion.MaxConcurrency)
	v.SetDefault("ingestion.default_lookback_days", def.Ingestion.DefaultLookbackDays)
	v.SetDefault("ingestion.history_limit", def.Ingestion.HistoryLimit)
	v.SetDefault("ingestion.request_timeout", def.Ingestion.RequestTimeout)
	v.SetDefault("ingestion.batch_timeout", def.Ingestion.BatchTimeout)
	v.SetDefault("ingestion.total_timeout", def.Ingestion.TotalTimeout)
	v.SetDefault("ingestion.rate_limit_per_second", def.Ingestion.RateLimitPerSecond)

	v.SetDefault("cache.ttl", def.Cache.TTL)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.sampling_strategy", def.Observability.Tracing.SamplingStrategy)
	v.SetDefault("observability.tracing.sampling_rate", def.Observability.Tracing.SamplingRate)

	v.SetDefault("data_dir", def.DataDir)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PAT returns the Azure DevOps personal access token from the environment.
// It is never sourced from a config file per the upstream system's security model.
func (AzureDevOps) PAT() string {
	return os.Getenv("AZURE_DEVOPS_PAT")
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Ingestion.MaxConcurrency < 1 || cfg.Ingestion.MaxConcurrency > 20 {
		return fmt.Errorf("ingestion.max_concurrency must be between 1 and 20")
	}
	if cfg.Ingestion.DefaultLookbackDays < 1 {
		return fmt.Errorf("ingestion.default_lookback_days must be >= 1")
	}
	if cfg.Ingestion.RequestTimeout <= 0 {
		return fmt.Errorf("ingestion.request_timeout must be > 0")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
