// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/middleware"
	"github.com/tomtom215/tastedeck/internal/models"
)

func newTestRouter(d *fakeDeck, s *fakeStore, mw *ChiMiddlewareConfig) http.Handler {
	return NewRouter(newTestHandler(d, s), mw).Setup()
}

func TestRouterRoutes(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeDeck{}, &fakeStore{ready: 3}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK, `"ready_dishes":3`},
		{"deck", http.MethodPost, "/v1/taste/deck", `{"count": 6}`, http.StatusOK, `"source":"cache"`},
		{"analyze", http.MethodPost, "/v1/taste/analyze", `{"total_swipes": 1}`, http.StatusOK, `"source":"gemini"`},
		{"jobs", http.MethodGet, "/v1/taste/jobs", "", http.StatusOK, `"jobs":[]`},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK, "go_goroutines"},
		{"unknown path", http.MethodGet, "/v1/nope", "", http.StatusNotFound, `{"detail":"Not Found"}`},
		{"wrong method", http.MethodGet, "/v1/taste/deck", "", http.StatusMethodNotAllowed, `{"detail":"Method Not Allowed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", rec.Body.String(), tt.wantBody)
			}
			if rec.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeDeck{}, &fakeStore{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/taste/deck", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Client-Version")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code >= 300 {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want unset", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != http.MethodPost {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestRouterCORSSimpleRequest(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeDeck{}, &fakeStore{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestRouterRateLimit(t *testing.T) {
	t.Parallel()

	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitRequests = 2
	mw.RateLimitWindow = time.Minute
	h := newTestRouter(&fakeDeck{}, &fakeStore{}, mw)

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("/v1/taste/jobs"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do("/v1/taste/jobs")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"detail":"Too Many Requests"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	// Health sits outside the limited group.
	if rec := do("/health"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestRouterRateLimitDisabled(t *testing.T) {
	t.Parallel()

	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitRequests = 1
	mw.RateLimitDisabled = true
	h := newTestRouter(&fakeDeck{}, &fakeStore{}, mw)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/taste/jobs", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
}

func TestRouterCompressesTasteResponses(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeDeck{}, &fakeStore{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/taste/deck", strings.NewReader(`{"count": 40}`))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if !strings.Contains(string(plain), `"dishes":[`) {
		t.Errorf("decompressed body = %s", plain)
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	t.Parallel()

	d := &fakeDeck{serve: func(*models.DeckRequest) (*models.DeckResponse, error) {
		panic("nil map write")
	}}
	h := newTestRouter(d, &fakeStore{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/taste/deck", strings.NewReader(`{}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sec         *config.SecurityConfig
		wantOrigins []string
		wantReqs    int
		wantWindow  time.Duration
		wantOff     bool
	}{
		{"nil keeps defaults", nil, []string{"*"}, 120, time.Minute, false},
		{"empty keeps defaults", &config.SecurityConfig{}, []string{"*"}, 120, time.Minute, false},
		{
			name: "overrides",
			sec: &config.SecurityConfig{
				CORSOrigins:       []string{"https://a.example", "https://b.example"},
				RateLimitReqs:     30,
				RateLimitWindow:   10 * time.Second,
				RateLimitDisabled: true,
			},
			wantOrigins: []string{"https://a.example", "https://b.example"},
			wantReqs:    30,
			wantWindow:  10 * time.Second,
			wantOff:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := ChiMiddlewareConfigFromSecurity(tt.sec)
			if strings.Join(cfg.CORSAllowedOrigins, ",") != strings.Join(tt.wantOrigins, ",") {
				t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
			}
			if cfg.RateLimitRequests != tt.wantReqs || cfg.RateLimitWindow != tt.wantWindow || cfg.RateLimitDisabled != tt.wantOff {
				t.Errorf("rate limit = %d/%v disabled=%v", cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitDisabled)
			}
			if cfg.CORSAllowCredentials {
				t.Error("credentials must stay off")
			}
		})
	}
}
