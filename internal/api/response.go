// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/validation"
)

// maxBodyBytes bounds request bodies. Avoid lists are the largest field.
const maxBodyBytes = 1 << 20

// respondJSON writes v as a bare JSON object. The client contract has no
// envelope around response bodies.
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondDetail writes {"detail": detail}.
func respondDetail(w http.ResponseWriter, status int, detail any) {
	respondJSON(w, status, &models.ErrorDetail{Detail: detail})
}

// respondValidation writes a 422 with the field list.
func respondValidation(w http.ResponseWriter, verr *validation.RequestValidationError) {
	respondDetail(w, http.StatusUnprocessableEntity, verr.Details())
}

// decodeJSON reads a JSON request body into dst. Fields absent from the body
// keep whatever dst already holds, so callers preset defaults. A decode
// failure is reported as a single body-level validation entry.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) []validation.FieldDetail {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return bodyError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "value_error.too_large")
		}
		return bodyError("could not read request body", "value_error.read")
	}
	if len(body) == 0 {
		return bodyError("field required", "value_error.missing")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return bodyError("JSON decode error: "+err.Error(), "value_error.jsondecode")
	}
	return nil
}

func bodyError(msg, typ string) []validation.FieldDetail {
	return []validation.FieldDetail{{Loc: []string{"body"}, Msg: msg, Type: typ}}
}
