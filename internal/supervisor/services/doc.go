// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package services provides suture.Service wrappers for components whose
lifecycle does not already match Serve(ctx) error.

HTTPServerService translates http.Server's blocking ListenAndServe into a
context-aware Serve with graceful shutdown. Drain hooks registered with
WithDrain run after the listener has closed, bounded by the same shutdown
timeout; the deck service registers its Wait there so watermark checks
started by the last requests are not cut off.

The refill worker and watermark ticker implement suture.Service directly in
package refill and need no wrapper.
*/
package services
