// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/metrics"
)

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/test-metrics/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/test-metrics/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test-metrics/"+id, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter delta = %v, want 3", got)
	}
}

func TestPrometheusMetricsUnmatched(t *testing.T) {
	t.Parallel()

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "unmatched", "200")
	before := testutil.ToFloat64(counter)

	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/anything", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("counter delta = %v, want 1", got)
	}
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	t.Parallel()

	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteHeader(http.StatusOK)
	if rec.statusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.statusCode)
	}
	if rec.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}

func TestAccessLogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		delay     time.Duration
		wantLevel string
	}{
		// Global level is info, so debug lines are dropped.
		{"ok is debug", http.StatusOK, 0, ""},
		{"server error", http.StatusServiceUnavailable, 0, `"level":"error"`},
		{"slow request", http.StatusOK, 30 * time.Millisecond, `"level":"warn"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			mw := AccessLog(logging.NewTestLogger(&buf), 20*time.Millisecond)

			r := chi.NewRouter()
			r.Use(RequestID, mw)
			r.Post("/v1/taste/deck", func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(tt.delay)
				w.WriteHeader(tt.status)
			})

			req := httptest.NewRequest(http.MethodPost, "/v1/taste/deck", nil)
			req.Header.Set(RequestIDHeader, "rid-1")
			r.ServeHTTP(httptest.NewRecorder(), req)

			line := buf.String()
			if tt.wantLevel == "" {
				if line != "" {
					t.Errorf("unexpected log line %s", line)
				}
				return
			}
			for _, want := range []string{tt.wantLevel, `"request_id":"rid-1"`, `"route":"/v1/taste/deck"`, `"message":"http request"`} {
				if !strings.Contains(line, want) {
					t.Errorf("log line %s missing %s", line, want)
				}
			}
		})
	}
}
