// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure, assembled by the Loader from
// defaults, an optional YAML file, and environment variable overrides.
type Config struct {
	App       AppConfig       `koanf:"app"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Retry     RetryConfig     `koanf:"retry"`
	Graph     GraphConfig     `koanf:"graph"`
	Telemetry TelemetryConfig `koanf:"telemetry_source"`
	Buffer    BufferConfig    `koanf:"buffer"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Lifecycle LifecycleConfig `koanf:"lifecycle"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig configures the REST API server.
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig configures cross-origin access to the REST API.
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // log file path when output=file
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // number of rotated backups kept
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // postgres, mysql, sqlite
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN builds a driver-appropriate connection string.
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.Username, d.Password, d.Host, d.Port, d.Database,
		)
	case "sqlite":
		return d.Database
	default:
		return ""
	}
}

// CacheConfig configures the pluggable cache backend (Redis or in-memory).
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // for the in-memory driver
}

// Address returns the host:port form of the cache endpoint.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig configures API key request throttling.
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"`
	Backend         string        `koanf:"backend"`
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// AuditConfig configures the SLO lifecycle audit log.
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Backend     string        `koanf:"backend"`
	BufferSize  int           `koanf:"buffer_size"`
	FlushPeriod time.Duration `koanf:"flush_period"`
}

// RetryConfig configures retry behavior for outbound calls (telemetry port, cache).
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// GraphConfig bounds dependency graph ingestion and traversal.
type GraphConfig struct {
	MaxTraversalDepth int           `koanf:"max_traversal_depth"`
	StalenessWindow   time.Duration `koanf:"staleness_window"`
	BulkUpsertBatch   int           `koanf:"bulk_upsert_batch"`
}

// TelemetryConfig configures the client used to query the observed-availability port (C4).
type TelemetryConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Endpoint        string        `koanf:"endpoint"`
	Timeout         time.Duration `koanf:"timeout"`
	LookbackWindow  time.Duration `koanf:"lookback_window"`
	MinSampleCount  int64         `koanf:"min_sample_count"`
}

// BufferConfig configures the external-dependency pessimistic adjustment (C5).
type BufferConfig struct {
	PessimisticMultiplier int     `koanf:"pessimistic_multiplier"` // x in 1-(1-sla)*(x+1)
	DefaultAvailability   float64 `koanf:"default_availability"`   // used when neither observed nor published SLA exist
}

// AnalysisConfig bounds constraint and impact analysis runs.
type AnalysisConfig struct {
	Timeout             time.Duration `koanf:"timeout"`
	MaxConcurrentLookups int          `koanf:"max_concurrent_lookups"`
	DefaultTargetPct    float64       `koanf:"default_target_pct"`
	AchievabilityEpsilon float64      `koanf:"achievability_epsilon"`
}

// LifecycleConfig configures SLO acceptance defaults per risk tier.
type LifecycleConfig struct {
	Tiers map[string]SLOTierDefaults `koanf:"tiers"`
}

// SLOTierDefaults is the suggested target/budget pair for a named risk tier
// (conservative, balanced, aggressive).
type SLOTierDefaults struct {
	TargetPct           float64 `koanf:"target_pct"`
	ErrorBudgetMinutes  int     `koanf:"error_budget_minutes"`
	FastBurnThreshold   int     `koanf:"fast_burn_threshold_minutes"`
}

// Validate checks the assembled configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Buffer.PessimisticMultiplier < 0 {
		errs = append(errs, "buffer.pessimistic_multiplier must be non-negative")
	}

	if c.Buffer.DefaultAvailability <= 0 || c.Buffer.DefaultAvailability > 1 {
		errs = append(errs, fmt.Sprintf("buffer.default_availability must be in (0, 1], got %f", c.Buffer.DefaultAvailability))
	}

	if c.Analysis.DefaultTargetPct <= 0 || c.Analysis.DefaultTargetPct > 100 {
		errs = append(errs, fmt.Sprintf("analysis.default_target_pct must be in (0, 100], got %f", c.Analysis.DefaultTargetPct))
	}

	if c.Graph.MaxTraversalDepth <= 0 {
		errs = append(errs, "graph.max_traversal_depth must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the environment is development-like.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
