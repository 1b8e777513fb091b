// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv clears every mapped variable and points CONFIG_PATH nowhere so
// a developer's shell cannot leak into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for k := range envMappings {
		t.Setenv(strings.ToUpper(k), "")
		os.Unsetenv(strings.ToUpper(k))
	}
	t.Setenv(ConfigPathEnvVar, "")
	t.Chdir(t.TempDir())
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Gemini.Model != "gemini-3-flash-preview" {
		t.Errorf("Gemini.Model = %q, want gemini-3-flash-preview", cfg.Gemini.Model)
	}
	if cfg.Gemini.ImageModel != "gemini-3-pro-image-preview" {
		t.Errorf("Gemini.ImageModel = %q, want gemini-3-pro-image-preview", cfg.Gemini.ImageModel)
	}
	if cfg.Gemini.ReadTimeout != 70*time.Second {
		t.Errorf("Gemini.ReadTimeout = %v, want 70s", cfg.Gemini.ReadTimeout)
	}
	if cfg.Gemini.ConnectTimeout != 12*time.Second {
		t.Errorf("Gemini.ConnectTimeout = %v, want 12s", cfg.Gemini.ConnectTimeout)
	}
	if cfg.Gemini.MaxRetries != 3 {
		t.Errorf("Gemini.MaxRetries = %d, want 3", cfg.Gemini.MaxRetries)
	}
	if cfg.Gemini.ImageMaxBytes != 5242880 {
		t.Errorf("Gemini.ImageMaxBytes = %d, want 5242880", cfg.Gemini.ImageMaxBytes)
	}
	if cfg.Gemini.Configured() {
		t.Error("Gemini should not be configured without an API key")
	}

	if cfg.Deck.DefaultCount != 20 || cfg.Deck.MinCount != 6 || cfg.Deck.MaxCount != 40 {
		t.Errorf("Deck counts = %d/%d/%d, want 20/6/40", cfg.Deck.DefaultCount, cfg.Deck.MinCount, cfg.Deck.MaxCount)
	}
	if cfg.Deck.FillBatchMax != 8 || cfg.Deck.FillMaxAttempts != 5 {
		t.Errorf("Deck fill = %d/%d, want 8/5", cfg.Deck.FillBatchMax, cfg.Deck.FillMaxAttempts)
	}

	if cfg.Refill.LowWatermark != 50 {
		t.Errorf("Refill.LowWatermark = %d, want 50", cfg.Refill.LowWatermark)
	}
	if cfg.Refill.Batch != 16 {
		t.Errorf("Refill.Batch = %d, want 16", cfg.Refill.Batch)
	}
	if cfg.Refill.BootstrapMinReady != 8 {
		t.Errorf("Refill.BootstrapMinReady = %d, want 8", cfg.Refill.BootstrapMinReady)
	}
	if cfg.Refill.CheckInterval != 0 {
		t.Errorf("Refill.CheckInterval = %v, want 0 (disabled)", cfg.Refill.CheckInterval)
	}

	if cfg.Lock.Enabled() {
		t.Error("Lock should be disabled without REDIS_ADDR")
	}
	if cfg.Database.Driver != DriverDuckDB {
		t.Errorf("Database.Driver = %q, want duckdb", cfg.Database.Driver)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:8000" {
		t.Errorf("Server.Addr() = %q, want 0.0.0.0:8000", got)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"GEMINI_API_KEY", "gemini.api_key"},
		{"GEMINI_RPS", "gemini.requests_per_second"},
		{"DECK_LOW_WATERMARK", "refill.low_watermark"},
		{"DECK_REFILL_BATCH", "refill.batch"},
		{"BOOTSTRAP_MIN_READY", "refill.bootstrap_min_ready"},
		{"REDIS_ADDR", "lock.redis_addr"},
		{"NATS_URL", "events.nats_url"},
		{"DUCKDB_PATH", "database.path"},
		{"DATABASE_URL", "database.url"},
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.input); got != tt.expected {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	isolateEnv(t)

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty string", got)
	}

	if err := os.WriteFile("config.yaml", []byte("server:\n  port: 9001\n"), 0o600); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	if got := findConfigFile(); got != "config.yaml" {
		t.Errorf("findConfigFile() = %q, want config.yaml", got)
	}

	custom := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(custom, []byte("server:\n  port: 9002\n"), 0o600); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, custom)
	if got := findConfigFile(); got != custom {
		t.Errorf("findConfigFile() = %q, want %q", got, custom)
	}

	t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
	if got := findConfigFile(); got != "config.yaml" {
		t.Errorf("findConfigFile() = %q, want fallback config.yaml", got)
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GEMINI_API_KEY", "k-123")
	t.Setenv("GEMINI_READ_TIMEOUT", "30s")
	t.Setenv("GEMINI_IMAGE_ENABLED", "false")
	t.Setenv("DECK_LOW_WATERMARK", "12")
	t.Setenv("DECK_REFILL_BATCH", "10")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if !cfg.Gemini.Configured() || cfg.Gemini.APIKey != "k-123" {
		t.Errorf("Gemini.APIKey = %q, want k-123", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.ReadTimeout != 30*time.Second {
		t.Errorf("Gemini.ReadTimeout = %v, want 30s", cfg.Gemini.ReadTimeout)
	}
	if cfg.Gemini.ImageEnabled {
		t.Error("Gemini.ImageEnabled should be false")
	}
	if cfg.Refill.LowWatermark != 12 || cfg.Refill.Batch != 10 {
		t.Errorf("Refill = %d/%d, want 12/10", cfg.Refill.LowWatermark, cfg.Refill.Batch)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}

	// Defaults survive for unset values.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Database.MaxMemory != "1GB" {
		t.Errorf("Database.MaxMemory = %q, want 1GB (default)", cfg.Database.MaxMemory)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	isolateEnv(t)

	configContent := `
gemini:
  model: file-model
refill:
  batch: 24
server:
  port: 8123
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Gemini.Model != "file-model" {
		t.Errorf("Gemini.Model = %q, want file-model", cfg.Gemini.Model)
	}
	if cfg.Refill.Batch != 24 {
		t.Errorf("Refill.Batch = %d, want 24", cfg.Refill.Batch)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfDriverInference(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		driver string
	}{
		{"default duckdb", map[string]string{}, DriverDuckDB},
		{"postgres url", map[string]string{"DATABASE_URL": "postgres://u:p@db:5432/taste?sslmode=disable"}, DriverPostgres},
		{"postgresql url", map[string]string{"DATABASE_URL": "postgresql://db/taste"}, DriverPostgres},
		{"sqlite url", map[string]string{"DATABASE_URL": "sqlite:///./taste.db"}, DriverSQLite},
		{"file dsn", map[string]string{"DATABASE_URL": "file:taste.db?cache=shared"}, DriverSQLite},
		{"explicit driver wins", map[string]string{"DATABASE_DRIVER": "sqlite", "DATABASE_URL": "postgres://db/x"}, DriverSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadWithKoanf()
			if err != nil {
				t.Fatalf("LoadWithKoanf() error = %v", err)
			}
			if cfg.Database.Driver != tt.driver {
				t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, tt.driver)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"sqlite:///./taste.db", "./taste.db"},
		{"sqlite:////data/taste.db", "/data/taste.db"},
		{"file:taste.db?cache=shared", "file:taste.db?cache=shared"},
	}
	for _, tt := range tests {
		d := DatabaseConfig{URL: tt.url}
		if got := d.SQLiteDSN(); got != tt.want {
			t.Errorf("SQLiteDSN(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		errMsg  string
	}{
		{"bad port", map[string]string{"HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"zero retries", map[string]string{"GEMINI_MAX_RETRIES": "0"}, "GEMINI_MAX_RETRIES"},
		{"bad api base", map[string]string{"GEMINI_API_BASE": "ftp://x"}, "GEMINI_API_BASE"},
		{"zero batch", map[string]string{"DECK_REFILL_BATCH": "0"}, "DECK_REFILL_BATCH"},
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "oracle"}, "DATABASE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatalf("LoadWithKoanf() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadWithoutAPIKeyIsValid(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.Configured() {
		t.Error("Gemini.Configured() = true without GEMINI_API_KEY")
	}
}
