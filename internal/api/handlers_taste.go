// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/tastedeck/internal/deck"
	"github.com/tomtom215/tastedeck/internal/middleware"
	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/validation"
)

// Deck serves POST /v1/taste/deck.
func (h *Handler) Deck(w http.ResponseWriter, r *http.Request) {
	req := models.DeckRequest{
		Count:  h.deckCfg.DefaultCount,
		Locale: models.DefaultLocale,
	}
	if details := decodeJSON(w, r, &req); details != nil {
		respondDetail(w, http.StatusUnprocessableEntity, details)
		return
	}
	if req.Count < h.deckCfg.MinCount || req.Count > h.deckCfg.MaxCount {
		respondValidation(w, validation.RangeError("count", req.Count, h.deckCfg.MinCount, h.deckCfg.MaxCount))
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	resp, err := h.deck.Serve(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, "deck", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Analyze serves POST /v1/taste/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if details := decodeJSON(w, r, &req); details != nil {
		respondDetail(w, http.StatusUnprocessableEntity, details)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}

	resp, err := h.deck.Analyze(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, "analyze", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondServiceError maps deck errors to status codes. Upstream failures
// are 502 and inventory shortfalls are 503, both carrying the error text.
// Anything else is a 500 with a generic body.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := h.logger.With().
		Str("op", op).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Logger()

	switch {
	case errors.Is(err, deck.ErrUpstream):
		log.Warn().Err(err).Msg("Upstream generation failed")
		respondDetail(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, deck.ErrCapacity):
		log.Warn().Err(err).Msg("Inventory could not cover request")
		respondDetail(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		respondDetail(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
