// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/tastedeck/internal/api"
	"github.com/tomtom215/tastedeck/internal/cache"
	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/database"
	"github.com/tomtom215/tastedeck/internal/deck"
	"github.com/tomtom215/tastedeck/internal/events"
	"github.com/tomtom215/tastedeck/internal/gemini"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/refill"
	"github.com/tomtom215/tastedeck/internal/supervisor"
	"github.com/tomtom215/tastedeck/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("driver", cfg.Database.Driver).
		Str("model", cfg.Gemini.Model).
		Str("image_model", cfg.Gemini.ImageModel).
		Bool("gemini_configured", cfg.Gemini.Configured()).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Tastedeck")

	if !cfg.Gemini.Configured() {
		logging.Warn().Msg("GEMINI_API_KEY is not set; decks are served from existing inventory only")
	}

	// Migrations run inside New, before anything reads the inventory.
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Str("driver", db.Driver()).Msg("Database initialized successfully")

	publisher, err := events.New(&cfg.Events)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize inventory events")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()
	if publisher != nil {
		logging.Info().Str("transport", publisher.Transport()).Msg("Inventory events enabled")
	}

	client := gemini.NewClient(&cfg.Gemini)

	engine, lease := initRefill(cfg, db, client, publisher)
	if lease != nil {
		defer func() {
			if err := lease.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Redis lease")
			}
		}()
	}

	deckOpts := []deck.Option{}
	if analyzeCache := cache.New(cfg.Analyze.CacheTTL, cache.DefaultCapacity); analyzeCache != nil {
		deckOpts = append(deckOpts, deck.WithAnalyzeCache(analyzeCache))
	}
	deckService := deck.NewService(db, engine, client, deckOpts...)

	handler := api.NewHandler(cfg, deckService, db, client)
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromSecurity(&cfg.Security))
	server := newHTTPServer(cfg, router.Setup())

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (security.rate_limit_disabled=true)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddRefillService(refill.NewWorker(engine, logging.WithComponent("refill")))
	if cfg.Refill.CheckInterval > 0 {
		tree.AddRefillService(refill.NewTicker(engine, cfg.Refill.CheckInterval, logging.WithComponent("refill")))
		logging.Info().Dur("interval", cfg.Refill.CheckInterval).Msg("Periodic watermark check enabled")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second,
		services.WithAddr(server.Addr),
		services.WithDrain(deckService.Wait),
	))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The worker is running, so a bootstrap cycle queued here starts at once.
	bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 30*time.Second)
	if queued, err := engine.Bootstrap(bootstrapCtx); err != nil {
		logging.Error().Err(err).Msg("Bootstrap inventory check failed")
	} else if queued {
		logging.Info().Msg("Bootstrap refill queued")
	}
	bootstrapCancel()

	// ServeBackground sends exactly one value and never closes the channel.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
