// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package middleware provides HTTP middleware for the Tastedeck API.

All middleware use the chi signature func(http.Handler) http.Handler and are
installed by the api router in this order:

 1. RequestID: reuse or generate X-Request-ID and store it for logging
 2. AccessLog: one zerolog line per request
 3. PrometheusMetrics: api_requests_total, api_request_duration_seconds and
    api_active_requests, labelled by chi route pattern

CORS, rate limiting, panic recovery and compression come from the chi
ecosystem (go-chi/cors, go-chi/httprate, chi/middleware) and are wired in
the api package.
*/
package middleware
