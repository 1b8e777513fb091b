// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package api provides the HTTP surface of Tastedeck.

Routes:

	GET  /health            models, provider configuration, ready dish count
	GET  /metrics           Prometheus exposition
	POST /v1/taste/deck     serve a deck of dish cards
	POST /v1/taste/analyze  summarize a swipe history
	GET  /v1/taste/jobs     recent generation jobs

Bodies are bare JSON objects. Errors use {"detail": ...}: a string for
502, 503 and 500 responses and a list of {loc, msg, type} entries for 422
validation failures.

Middleware order: request id, access log, real IP, panic recovery, CORS and
Prometheus metrics on every route; per-IP rate limiting and gzip on the
/v1/taste group.

Usage:

	handler := api.NewHandler(cfg, deckService, db, geminiClient)
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromSecurity(&cfg.Security))
	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: router.Setup()}
*/
package api
