package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	API         APIConfig         `mapstructure:"api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Agents      AgentsConfig      `mapstructure:"agents"`
	Weighting   WeightingConfig   `mapstructure:"weighting"`
	Learning    LearningConfig    `mapstructure:"learning"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CacheConfig contains aggregation cache settings
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`  // "memory" or "redis"
	Capacity   int           `mapstructure:"capacity"` // Max entries for the memory backend
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// AgentsConfig contains sub-agent settings
type AgentsConfig struct {
	Timeout time.Duration   `mapstructure:"timeout"` // Per-agent prediction deadline
	Enabled map[string]bool `mapstructure:"enabled"` // sport -> enabled
}

// WeightingConfig contains weighting strategy settings
type WeightingConfig struct {
	DefaultStrategy  string  `mapstructure:"default_strategy"`
	HistoricalPrior  float64 `mapstructure:"historical_prior"`  // Accuracy assumed for agents with no history
	HybridConfidence float64 `mapstructure:"hybrid_confidence"` // Confidence share in the hybrid mix
}

// LearningConfig contains outcome learner settings
type LearningConfig struct {
	EWMAAlpha          float64       `mapstructure:"ewma_alpha"` // Recency weight for rolling accuracy
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
}

// RedisConfig contains Redis settings (optional cache backend)
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address for the Redis client
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseConfig contains PostgreSQL settings (optional checkpoint store)
type DatabaseConfig struct {
	URL     string `mapstructure:"url"` // Empty disables checkpointing
	MaxConn int    `mapstructure:"max_conn"`
}

// NATSConfig contains outcome event bus settings (optional)
type NATSConfig struct {
	URL           string `mapstructure:"url"` // Empty disables the event bus
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// MonitoringConfig contains metrics settings
type MonitoringConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics"`
	MetricsPort   int  `mapstructure:"metrics_port"`
}

// RateLimitConfig contains API rate limit settings
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	Burst             int  `mapstructure:"burst"`
}

// PreferencesConfig contains user preference store settings
type PreferencesConfig struct {
	File string `mapstructure:"file"` // Optional YAML/JSON preference vectors loaded at start
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PARLAYFORGE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ParlayForge")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.capacity", 1024)
	v.SetDefault("cache.default_ttl", "5m")

	v.SetDefault("agents.timeout", "5s")
	v.SetDefault("agents.enabled.baseball", true)
	v.SetDefault("agents.enabled.basketball", true)
	v.SetDefault("agents.enabled.football", true)
	v.SetDefault("agents.enabled.hockey", true)

	v.SetDefault("weighting.default_strategy", "equal")
	v.SetDefault("weighting.historical_prior", 0.5)
	v.SetDefault("weighting.hybrid_confidence", 0.5)

	v.SetDefault("learning.ewma_alpha", 0.2)
	v.SetDefault("learning.checkpoint_interval", "5m")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conn", 10)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "parlayforge.")

	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_port", 9091)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("preferences.file", "")
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("invalid cache.backend %q: must be \"memory\" or \"redis\"", c.Cache.Backend)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Agents.Timeout <= 0 {
		return fmt.Errorf("agents.timeout must be positive, got %s", c.Agents.Timeout)
	}
	if c.Weighting.HistoricalPrior < 0 || c.Weighting.HistoricalPrior > 1 {
		return fmt.Errorf("weighting.historical_prior must be in [0,1], got %f", c.Weighting.HistoricalPrior)
	}
	if c.Weighting.HybridConfidence < 0 || c.Weighting.HybridConfidence > 1 {
		return fmt.Errorf("weighting.hybrid_confidence must be in [0,1], got %f", c.Weighting.HybridConfidence)
	}
	// alpha == 1 would make the last outcome win outright
	if c.Learning.EWMAAlpha <= 0 || c.Learning.EWMAAlpha >= 1 {
		return fmt.Errorf("learning.ewma_alpha must be in (0,1), got %f", c.Learning.EWMAAlpha)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be in (0,65535], got %d", c.API.Port)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive, got %d", c.RateLimit.RequestsPerSecond)
	}
	return nil
}
