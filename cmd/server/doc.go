// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package main is the entry point for the Tastedeck server.

Tastedeck serves decks of dish cards, each carrying a vector of taste
signals, to a swipe client. Decks come from a persistent inventory that is
filled lazily by the Gemini generateContent API: a cache miss triggers a
synchronous top-up, and a background worker keeps the ready count above a
low watermark.

# Startup order

 1. Configuration: koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog, JSON or console
 3. Database: DuckDB, Postgres or SQLite; versioned migrations run here
 4. Inventory events: Watermill gochannel, or NATS JetStream when NATS_URL is set
 5. Gemini client: retry, token bucket pacing, circuit breaker
 6. Refill engine, plus the Redis lease when REDIS_ADDR is set
 7. Deck service with the analyze cache
 8. Chi router
 9. Supervisor tree: refill worker, optional watermark ticker, HTTP server
 10. Bootstrap inventory check

SIGINT or SIGTERM cancels the tree. The HTTP server drains, background
watermark checks finish, then the lease, event publisher and database close.

# Configuration

Common environment variables:

	GEMINI_API_KEY=...           # Without it decks come only from existing inventory
	GEMINI_MODEL=gemini-3-flash-preview
	GEMINI_IMAGE_MODEL=gemini-3-pro-image-preview
	DATABASE_URL=postgres://...  # or sqlite:///path, or unset for DuckDB
	DUCKDB_PATH=/data/tastedeck.duckdb
	DECK_LOW_WATERMARK=50
	DECK_REFILL_BATCH=16
	BOOTSTRAP_MIN_READY=8
	REDIS_ADDR=redis:6379        # Share the refill guard across replicas
	NATS_URL=nats://nats:4222    # Publish inventory events to JetStream
	HTTP_PORT=8000

See internal/config for the full list and the YAML layout.
*/
package main
