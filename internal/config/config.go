// Package config loads and validates configuration at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
//
// Values come from, in order of precedence: environment variables, an
// optional YAML config file, then defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"jobmate/matching-service/internal/scoring"
)

// Lock backends.
const (
	LockRedis  = "redis"
	LockMemory = "memory"
)

// Config holds all runtime configuration for the matching service.
type Config struct {
	Port        string `mapstructure:"port"`
	GRPCPort    string `mapstructure:"grpc-port"`
	DatabaseURL string `mapstructure:"database-url"`
	RedisURL    string `mapstructure:"redis-url"`

	LockBackend    string        `mapstructure:"lock-backend"`
	LockTimeout    time.Duration `mapstructure:"lock-timeout"`
	LockLease      time.Duration `mapstructure:"lock-lease"`
	PersistRetries int           `mapstructure:"persist-retries"`
	RetryBackoff   time.Duration `mapstructure:"retry-backoff"`
	ScoringWorkers int           `mapstructure:"scoring-workers"`

	RecomputeIntervalHours int `mapstructure:"recompute-interval-hours"` // 0 disables the scheduler
	RecomputeBatch         int `mapstructure:"recompute-batch"`

	Weights scoring.Weights `mapstructure:"weights"`

	LogJSON  bool `mapstructure:"log-json"`
	LogDebug bool `mapstructure:"log-debug"`
}

// env maps config keys to environment variables.
var env = map[string]string{
	"port":                     "MATCHING_PORT",
	"grpc-port":                "MATCHING_GRPC_PORT",
	"database-url":             "DATABASE_URL",
	"redis-url":                "REDIS_URL",
	"lock-backend":             "MATCHING_LOCK_BACKEND",
	"lock-timeout":             "MATCHING_LOCK_TIMEOUT",
	"lock-lease":               "MATCHING_LOCK_LEASE",
	"persist-retries":          "MATCHING_PERSIST_RETRIES",
	"retry-backoff":            "MATCHING_RETRY_BACKOFF",
	"scoring-workers":          "MATCHING_SCORING_WORKERS",
	"recompute-interval-hours": "RECOMPUTE_INTERVAL_HOURS",
	"recompute-batch":          "RECOMPUTE_BATCH",
	"weights.skills":           "MATCHING_WEIGHT_SKILLS",
	"weights.experience":       "MATCHING_WEIGHT_EXPERIENCE",
	"weights.education":        "MATCHING_WEIGHT_EDUCATION",
	"weights.context":          "MATCHING_WEIGHT_CONTEXT",
	"log-json":                 "LOG_JSON",
	"log-debug":                "LOG_DEBUG",
}

func setDefaults(v *viper.Viper) {
	w := scoring.DefaultWeights()
	v.SetDefault("port", "8083")
	v.SetDefault("grpc-port", "9093")
	v.SetDefault("lock-backend", LockRedis)
	v.SetDefault("lock-timeout", 5*time.Second)
	v.SetDefault("lock-lease", 30*time.Second)
	v.SetDefault("persist-retries", 3)
	v.SetDefault("retry-backoff", 200*time.Millisecond)
	v.SetDefault("scoring-workers", 0)
	v.SetDefault("recompute-interval-hours", 6)
	v.SetDefault("recompute-batch", 50)
	v.SetDefault("weights.skills", w.Skills)
	v.SetDefault("weights.experience", w.Experience)
	v.SetDefault("weights.education", w.Education)
	v.SetDefault("weights.context", w.Context)
	v.SetDefault("log-json", true)
	v.SetDefault("log-debug", false)
}

// Load reads the environment and, when cfgFile is not empty, a config
// file, and returns a validated Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	c.LockBackend = strings.ToLower(strings.TrimSpace(c.LockBackend))
	if c.LockBackend != LockRedis && c.LockBackend != LockMemory {
		return fmt.Errorf("MATCHING_LOCK_BACKEND must be %q or %q, got %q", LockRedis, LockMemory, c.LockBackend)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("MATCHING_LOCK_TIMEOUT must be positive, got %s", c.LockTimeout)
	}
	if c.LockBackend == LockRedis && c.LockLease <= c.LockTimeout {
		return fmt.Errorf("MATCHING_LOCK_LEASE (%s) must exceed MATCHING_LOCK_TIMEOUT (%s)", c.LockLease, c.LockTimeout)
	}
	if c.PersistRetries < 0 {
		return fmt.Errorf("MATCHING_PERSIST_RETRIES must not be negative, got %d", c.PersistRetries)
	}
	if c.ScoringWorkers < 0 {
		return fmt.Errorf("MATCHING_SCORING_WORKERS must not be negative, got %d", c.ScoringWorkers)
	}
	if c.RecomputeIntervalHours < 0 {
		return fmt.Errorf("RECOMPUTE_INTERVAL_HOURS must not be negative, got %d", c.RecomputeIntervalHours)
	}
	if c.RecomputeBatch < 1 {
		return fmt.Errorf("RECOMPUTE_BATCH must be a positive integer, got %d", c.RecomputeBatch)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	return nil
}
