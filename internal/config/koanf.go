// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tastedeck/config.yaml",
	"/etc/tastedeck/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKey:            "",
			Model:             "gemini-3-flash-preview",
			ImageModel:        "gemini-3-pro-image-preview",
			APIBase:           "https://generativelanguage.googleapis.com",
			ReadTimeout:       70 * time.Second,
			ConnectTimeout:    12 * time.Second,
			MaxRetries:        3,
			ImageMaxBytes:     5 * 1024 * 1024,
			RequestsPerSecond: 2,
			Burst:             4,
			ImageEnabled:      true,
		},
		Deck: DeckConfig{
			DefaultCount:    20,
			MinCount:        6,
			MaxCount:        40,
			FillBatchMax:    8,
			FillMaxAttempts: 5,
		},
		Refill: RefillConfig{
			LowWatermark:      50,
			Batch:             16,
			BootstrapMinReady: 8,
			QueueSize:         4,
			CycleTimeout:      10 * time.Minute,
			CheckInterval:     0, // Traffic-driven only by default
		},
		Lock: LockConfig{
			RedisAddr:     "",
			RedisPassword: "",
			RedisDB:       0,
			Key:           "tastedeck:refill-lock",
			TTL:           15 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:     true,
			NATSURL:     "",
			TopicPrefix: "tastedeck",
		},
		Analyze: AnalyzeConfig{
			CacheTTL: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:    DriverDuckDB,
			Path:      "/data/tastedeck.duckdb",
			URL:       "",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Server: ServerConfig{
			Port:        8000,
			Host:        "0.0.0.0",
			Timeout:     90 * time.Second, // Sync fills wait on the upstream
			Environment: "development",
		},
		Security: SecurityConfig{
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// GEMINI_API_KEY -> gemini.api_key
	// DECK_LOW_WATERMARK -> refill.low_watermark
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.inferDriver()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while YAML already yields slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Gemini
	"gemini_api_key":         "gemini.api_key",
	"gemini_model":           "gemini.model",
	"gemini_image_model":     "gemini.image_model",
	"gemini_api_base":        "gemini.api_base",
	"gemini_read_timeout":    "gemini.read_timeout",
	"gemini_connect_timeout": "gemini.connect_timeout",
	"gemini_max_retries":     "gemini.max_retries",
	"gemini_image_max_bytes": "gemini.image_max_bytes",
	"gemini_rps":             "gemini.requests_per_second",
	"gemini_burst":           "gemini.burst",
	"gemini_image_enabled":   "gemini.image_enabled",

	// Deck
	"deck_default_count":     "deck.default_count",
	"deck_min_count":         "deck.min_count",
	"deck_max_count":         "deck.max_count",
	"deck_fill_batch_max":    "deck.fill_batch_max",
	"deck_fill_max_attempts": "deck.fill_max_attempts",

	// Refill
	"deck_low_watermark":    "refill.low_watermark",
	"deck_refill_batch":     "refill.batch",
	"bootstrap_min_ready":   "refill.bootstrap_min_ready",
	"refill_queue_size":     "refill.queue_size",
	"refill_cycle_timeout":  "refill.cycle_timeout",
	"refill_check_interval": "refill.check_interval",

	// Lock
	"redis_addr":     "lock.redis_addr",
	"redis_password": "lock.redis_password",
	"redis_db":       "lock.redis_db",
	"lock_key":       "lock.key",
	"lock_ttl":       "lock.ttl",

	// Events
	"events_enabled":      "events.enabled",
	"nats_url":            "events.nats_url",
	"events_topic_prefix": "events.topic_prefix",

	// Analyze
	"analyze_cache_ttl": "analyze.cache_ttl",

	// Database
	"database_driver":   "database.driver",
	"duckdb_path":       "database.path",
	"database_url":      "database.url",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Server
	"http_port":      "server.port",
	"http_host":      "server.host",
	"server_timeout": "server.timeout",
	"environment":    "server.environment",

	// Security
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - GEMINI_API_KEY -> gemini.api_key
//   - DECK_REFILL_BATCH -> refill.batch
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Returning "" makes koanf skip the variable.
	return ""
}
