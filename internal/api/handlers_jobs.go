// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/validation"
)

const (
	defaultJobsLimit = 20
	maxJobsLimit     = 200
)

// Jobs serves GET /v1/taste/jobs?limit=N, newest first.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondDetail(w, http.StatusUnprocessableEntity, []validation.FieldDetail{{
				Loc:  []string{"query", "limit"},
				Msg:  "value is not a valid integer",
				Type: "type_error.integer",
			}})
			return
		}
		if n < 1 || n > maxJobsLimit {
			details := validation.RangeError("limit", n, 1, maxJobsLimit).Details()
			details[0].Loc[0] = "query"
			respondDetail(w, http.StatusUnprocessableEntity, details)
			return
		}
		limit = n
	}

	jobs, err := h.store.ListJobs(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list generation jobs")
		respondDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if jobs == nil {
		jobs = []models.GenerationJob{}
	}
	respondJSON(w, http.StatusOK, &models.JobsResponse{Jobs: jobs})
}
