// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package config loads Tastedeck configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	db, err := database.New(&cfg.Database)
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Database driver names accepted by database.driver.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Gemini   GeminiConfig   `koanf:"gemini"`
	Deck     DeckConfig     `koanf:"deck"`
	Refill   RefillConfig   `koanf:"refill"`
	Lock     LockConfig     `koanf:"lock"`     // Optional: Redis lease shared across replicas
	Events   EventsConfig   `koanf:"events"`   // Inventory events (in-process or NATS JetStream)
	Analyze  AnalyzeConfig  `koanf:"analyze"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// GeminiConfig configures the generateContent client.
type GeminiConfig struct {
	APIKey         string        `koanf:"api_key"`
	Model          string        `koanf:"model"`           // Text/JSON model
	ImageModel     string        `koanf:"image_model"`     // Image model used for dish pictures
	APIBase        string        `koanf:"api_base"`        // Scheme and host, no trailing slash
	ReadTimeout    time.Duration `koanf:"read_timeout"`    // Response header and body
	ConnectTimeout time.Duration `koanf:"connect_timeout"` // TCP dial
	MaxRetries     int           `koanf:"max_retries"`
	ImageMaxBytes  int           `koanf:"image_max_bytes"`

	// Client-side pacing ahead of the upstream quota.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	ImageEnabled bool `koanf:"image_enabled"` // When false dishes are stored without images
}

// Configured reports whether an API key is present.
func (g *GeminiConfig) Configured() bool {
	return strings.TrimSpace(g.APIKey) != ""
}

// DeckConfig bounds deck requests and the synchronous fill loop.
type DeckConfig struct {
	DefaultCount    int `koanf:"default_count"`
	MinCount        int `koanf:"min_count"`
	MaxCount        int `koanf:"max_count"`
	FillBatchMax    int `koanf:"fill_batch_max"`    // Dishes requested per generation call
	FillMaxAttempts int `koanf:"fill_max_attempts"` // Generation calls per fill before giving up
}

// RefillConfig controls background replenishment.
type RefillConfig struct {
	LowWatermark      int           `koanf:"low_watermark"`
	Batch             int           `koanf:"batch"`
	BootstrapMinReady int           `koanf:"bootstrap_min_ready"`
	QueueSize         int           `koanf:"queue_size"`
	CycleTimeout      time.Duration `koanf:"cycle_timeout"`
	CheckInterval     time.Duration `koanf:"check_interval"` // 0 disables the periodic check
}

// LockConfig configures the optional distributed refill lease.
type LockConfig struct {
	RedisAddr     string        `koanf:"redis_addr"` // Empty disables the Redis lease
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	Key           string        `koanf:"key"`
	TTL           time.Duration `koanf:"ttl"`
}

// Enabled reports whether a Redis address is configured.
func (l *LockConfig) Enabled() bool {
	return l.RedisAddr != ""
}

// EventsConfig configures inventory event publishing.
type EventsConfig struct {
	Enabled     bool   `koanf:"enabled"`
	NATSURL     string `koanf:"nats_url"` // Empty keeps events in-process
	TopicPrefix string `koanf:"topic_prefix"`
}

// AnalyzeConfig configures the taste analyzer.
type AnalyzeConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"` // 0 disables memoization
}

// DatabaseConfig selects and configures the inventory store.
type DatabaseConfig struct {
	Driver    string `koanf:"driver"`     // duckdb, postgres or sqlite
	Path      string `koanf:"path"`       // DuckDB file path
	URL       string `koanf:"url"`        // DSN for postgres or sqlite
	MaxMemory string `koanf:"max_memory"` // DuckDB memory limit
	Threads   int    `koanf:"threads"`    // DuckDB threads, 0 = runtime.NumCPU()
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// Addr returns host:port for http.Server.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds rate limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// inferDriver picks the database driver from the DATABASE_URL scheme.
// An explicit driver other than the default is left untouched.
func (c *Config) inferDriver() {
	if c.Database.URL == "" {
		return
	}
	if c.Database.Driver != "" && c.Database.Driver != DriverDuckDB {
		return
	}
	raw := strings.TrimSpace(c.Database.URL)
	if strings.HasPrefix(raw, "file:") {
		c.Database.Driver = DriverSQLite
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		c.Database.Driver = DriverPostgres
	case "sqlite", "sqlite3":
		c.Database.Driver = DriverSQLite
	}
}

// SQLiteDSN converts a sqlite:// URL into the path form modernc.org/sqlite
// expects. Three slashes mean a relative path and four an absolute one.
// file: DSNs pass through unchanged.
func (d *DatabaseConfig) SQLiteDSN() string {
	raw := strings.TrimSpace(d.URL)
	switch {
	case strings.HasPrefix(raw, "sqlite:///"):
		return strings.TrimPrefix(raw, "sqlite:///")
	case strings.HasPrefix(raw, "sqlite://"):
		return strings.TrimPrefix(raw, "sqlite://")
	case strings.HasPrefix(raw, "sqlite3://"):
		return strings.TrimPrefix(raw, "sqlite3://")
	default:
		return raw
	}
}

// Load reads configuration from defaults, an optional config file and
// environment variables, in that order. See LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
