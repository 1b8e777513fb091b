// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package gemini

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	// ErrNotConfigured means no API key is set. No request was sent.
	ErrNotConfigured = errors.New("GEMINI_API_KEY is not set")

	ErrNoCandidates  = errors.New("Gemini returned no candidates")                  //nolint:staticcheck // provider name is a proper noun
	ErrNoTextPart    = errors.New("Gemini returned no text part")                   //nolint:staticcheck // provider name is a proper noun
	ErrNoInlineImage = errors.New("Gemini image response has no inline image data") //nolint:staticcheck // provider name is a proper noun
	ErrImageTooLarge = errors.New("image too large")

	// ErrCircuitOpen wraps gobreaker rejections while the upstream is failing.
	ErrCircuitOpen = errors.New("gemini circuit breaker open")
)

// maxErrorBody caps the response text kept in an HTTPError, in characters.
const maxErrorBody = 1200

// retryableStatuses are retried with backoff while attempts remain.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// HTTPError is a terminal non-2xx response.
type HTTPError struct {
	StatusCode int
	Model      string
	Body       string // At most 1200 characters
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Gemini HTTP %d model=%s: %s", e.StatusCode, e.Model, e.Body)
}

// Retryable reports whether the status is one the client retries.
func (e *HTTPError) Retryable() bool {
	return retryableStatuses[e.StatusCode]
}

// RequestError is a terminal transport failure.
type RequestError struct {
	Model string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Gemini request error model=%s: %v", e.Model, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
