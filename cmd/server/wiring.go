// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package main

import (
	"net/http"
	"time"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/events"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/refill"
)

// initRefill builds the refill engine. The returned lease is nil unless
// lock.redis_addr is set; the caller closes it on shutdown.
func initRefill(cfg *config.Config, store refill.Store, gen refill.Generator, publisher *events.Publisher) (*refill.Engine, *refill.RedisLease) {
	opts := refill.OptionsFromConfig(cfg)
	options := []refill.Option{refill.WithEvents(publisher)}

	// A typed nil must not reach the Lease interface.
	lease := refill.NewRedisLease(&cfg.Lock)
	if lease != nil {
		options = append(options, refill.WithLease(lease))
		logging.Info().
			Str("addr", cfg.Lock.RedisAddr).
			Str("key", cfg.Lock.Key).
			Dur("ttl", cfg.Lock.TTL).
			Msg("Distributed refill lease enabled")
	}

	logging.Info().
		Int("low_watermark", opts.LowWatermark).
		Int("refill_batch", opts.RefillBatch).
		Int("bootstrap_min_ready", opts.BootstrapMinReady).
		Bool("images", opts.ImagesEnabled).
		Msg("Refill engine configured")

	return refill.NewEngine(store, gen, opts, options...), lease
}

// newHTTPServer applies the server timeouts. The write timeout covers a
// full sync fill, which is why server.timeout defaults to 90s.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}
