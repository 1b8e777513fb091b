// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
	"panic": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks that configuration values are usable.
// A missing Gemini API key is not an error: the service starts and
// reports gemini_configured=false on /health.
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateDeck(); err != nil {
		return err
	}
	if err := c.validateRefill(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGemini() error {
	g := &c.Gemini
	u, err := url.Parse(g.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("GEMINI_API_BASE must be an http(s) URL, got %q", g.APIBase)
	}
	if strings.TrimSpace(g.Model) == "" {
		return fmt.Errorf("GEMINI_MODEL must not be empty")
	}
	if g.ImageEnabled && strings.TrimSpace(g.ImageModel) == "" {
		return fmt.Errorf("GEMINI_IMAGE_MODEL must not be empty when images are enabled")
	}
	if g.ReadTimeout <= 0 || g.ConnectTimeout <= 0 {
		return fmt.Errorf("gemini timeouts must be positive (read=%v connect=%v)", g.ReadTimeout, g.ConnectTimeout)
	}
	if g.MaxRetries < 1 {
		return fmt.Errorf("GEMINI_MAX_RETRIES must be at least 1, got %d", g.MaxRetries)
	}
	if g.ImageMaxBytes < 1 {
		return fmt.Errorf("GEMINI_IMAGE_MAX_BYTES must be positive, got %d", g.ImageMaxBytes)
	}
	if g.RequestsPerSecond < 0 {
		return fmt.Errorf("GEMINI_RPS must not be negative, got %v", g.RequestsPerSecond)
	}
	if g.RequestsPerSecond > 0 && g.Burst < 1 {
		return fmt.Errorf("GEMINI_BURST must be at least 1 when GEMINI_RPS is set, got %d", g.Burst)
	}
	return nil
}

func (c *Config) validateDeck() error {
	d := &c.Deck
	if d.MinCount < 1 || d.MinCount > d.MaxCount {
		return fmt.Errorf("deck count bounds invalid: min=%d max=%d", d.MinCount, d.MaxCount)
	}
	if d.DefaultCount < d.MinCount || d.DefaultCount > d.MaxCount {
		return fmt.Errorf("deck default_count %d outside [%d, %d]", d.DefaultCount, d.MinCount, d.MaxCount)
	}
	if d.FillBatchMax < 1 {
		return fmt.Errorf("deck fill_batch_max must be at least 1, got %d", d.FillBatchMax)
	}
	if d.FillMaxAttempts < 1 {
		return fmt.Errorf("deck fill_max_attempts must be at least 1, got %d", d.FillMaxAttempts)
	}
	return nil
}

func (c *Config) validateRefill() error {
	r := &c.Refill
	if r.LowWatermark < 0 {
		return fmt.Errorf("DECK_LOW_WATERMARK must not be negative, got %d", r.LowWatermark)
	}
	if r.Batch < 1 {
		return fmt.Errorf("DECK_REFILL_BATCH must be at least 1, got %d", r.Batch)
	}
	if r.BootstrapMinReady < 0 {
		return fmt.Errorf("BOOTSTRAP_MIN_READY must not be negative, got %d", r.BootstrapMinReady)
	}
	if r.QueueSize < 1 {
		return fmt.Errorf("refill queue_size must be at least 1, got %d", r.QueueSize)
	}
	if r.CycleTimeout <= 0 {
		return fmt.Errorf("refill cycle_timeout must be positive, got %v", r.CycleTimeout)
	}
	if r.CheckInterval < 0 {
		return fmt.Errorf("refill check_interval must not be negative, got %v", r.CheckInterval)
	}
	return nil
}

func (c *Config) validateLock() error {
	if !c.Lock.Enabled() {
		return nil
	}
	if strings.TrimSpace(c.Lock.Key) == "" {
		return fmt.Errorf("lock key must not be empty when REDIS_ADDR is set")
	}
	if c.Lock.TTL <= 0 {
		return fmt.Errorf("lock ttl must be positive when REDIS_ADDR is set, got %v", c.Lock.TTL)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverDuckDB:
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required for the duckdb driver")
		}
	case DriverPostgres, DriverSQLite:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of duckdb, postgres, sqlite, got %q", c.Database.Driver)
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, got %q", c.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
