// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package api

import (
	"net/http"

	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
)

// Health reports the configured models and the ready inventory size.
// A store failure answers 503 with ok=false so load balancers pull the
// instance.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{OK: true}
	if h.provider != nil {
		resp.Model = h.provider.Model()
		resp.ImageModel = h.provider.ImageModel()
		resp.GeminiConfigured = h.provider.Configured()
	}

	n, err := h.store.CountReady(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check failed to count ready dishes")
		resp.OK = false
		respondJSON(w, http.StatusServiceUnavailable, &resp)
		return
	}
	resp.ReadyDishes = n
	metrics.SetReadyDishes(n)

	respondJSON(w, http.StatusOK, &resp)
}
