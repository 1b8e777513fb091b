// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built once and shared; it caches struct
// metadata, so it is cheap to call on every request. Field names in errors
// come from json tags so that they match what the client sent.
//
// Failures convert to the 422 body the mobile client already parses:
//
//	{"detail": [{"loc": ["body", "top_positive[0]", "id"], "msg": "id is required", "type": "value_error.required"}]}
//
// Usage:
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondValidation(w, verr.Details())
//	    return
//	}
//
// Integer bounds that come from configuration, such as the deck count, are
// checked by the caller and reported through RangeError.
package validation
