// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

// Package gemini is the generateContent client used to create dishes,
// dish images and taste summaries.
//
// Each call is paced by a token bucket, retried with linear backoff on
// transient failures, and guarded by a circuit breaker that opens when the
// upstream keeps failing. Each model has its own breaker, so an image model
// outage never blocks text generation:
//
//	client := gemini.NewClient(&cfg.Gemini)
//	resp, err := client.GenerateJSON(ctx, prompt, gemini.TemperatureDeck)
//	text, err := gemini.ExtractFirstText(resp)
//	obj, err := gemini.ExtractJSON(text)
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/logging"
	"github.com/tomtom215/tastedeck/internal/metrics"
	"github.com/tomtom215/tastedeck/internal/models"
	"github.com/tomtom215/tastedeck/internal/taste"
)

// Sampling temperatures per call site.
const (
	TemperatureDefault = 0.4
	TemperatureDeck    = 0.45
	TemperatureAnalyze = 0.3
	TemperatureImage   = 0.6
)

const (
	breakerPrefix = "gemini-api:"
	maxBackoff    = 8 * time.Second
	backoffStep   = 1200 * time.Millisecond
	writeTimeout  = 30 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client calls the Gemini generateContent endpoint. Safe for concurrent use.
type Client struct {
	apiKey        string
	baseURL       string
	model         string
	imageModel    string
	maxRetries    int
	imageMaxBytes int

	http    *http.Client
	limiter *rate.Limiter
	sleep   SleepFunc
	logger  zerolog.Logger

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[*Response]
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. for httptest servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleep replaces the backoff sleep. Tests use it to count waits.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient builds a client from configuration. A missing API key is
// allowed; every call then fails with ErrNotConfigured.
func NewClient(cfg *config.GeminiConfig, opts ...Option) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}

	c := &Client{
		apiKey:        strings.TrimSpace(cfg.APIKey),
		baseURL:       strings.TrimRight(cfg.APIBase, "/"),
		model:         cfg.Model,
		imageModel:    cfg.ImageModel,
		maxRetries:    cfg.MaxRetries,
		imageMaxBytes: cfg.ImageMaxBytes,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout + writeTimeout,
		},
		sleep:    sleepContext,
		logger:   logging.WithComponent("gemini"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[*Response]),
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	c.breaker(c.model)
	c.breaker(c.imageModel)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the text model name.
func (c *Client) Model() string { return c.model }

// ImageModel returns the image model name.
func (c *Client) ImageModel() string { return c.imageModel }

// breaker returns the breaker for model, creating it on first use.
func (c *Client) breaker(model string) *gobreaker.CircuitBreaker[*Response] {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	cb, ok := c.breakers[model]
	if !ok {
		cb = newBreaker(breakerPrefix + model)
		c.breakers[model] = cb
	}
	return cb
}

// newBreaker opens after a 60% failure rate over at least 10 calls and
// probes again after two minutes. Non-retryable 4xx answers and caller
// cancellations do not count against the upstream.
func newBreaker(name string) *gobreaker.CircuitBreaker[*Response] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var he *HTTPError
			return errors.As(err, &he) && !he.Retryable()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

// Generate posts payload to {base}/v1beta/models/{model}:generateContent.
// Transport errors and statuses 408, 429, 500, 502, 503 and 504 are retried
// up to the configured attempt count, waiting min(8s, 1.2s*attempt) between
// attempts. The terminal error is an *HTTPError or *RequestError.
func (c *Client) Generate(ctx context.Context, payload *Request, model string) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gemini payload: %w", err)
	}

	cb := c.breaker(model)
	name := cb.Name()
	start := time.Now()
	resp, err := cb.Execute(func() (*Response, error) {
		return c.doWithRetry(ctx, body, model)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
		metrics.RecordGeminiCall(model, "success", time.Since(start))
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
		metrics.RecordGeminiCall(model, "rejected", time.Since(start))
		c.logger.Warn().Err(err).Str("model", model).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, fmt.Errorf("%w model=%s: %w", ErrCircuitOpen, model, err)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(cb.Counts().ConsecutiveFailures))
		outcome := "request_error"
		var he *HTTPError
		if errors.As(err, &he) {
			outcome = "http_error"
		}
		metrics.RecordGeminiCall(model, outcome, time.Since(start))
		return nil, err
	}
}

func (c *Client) doWithRetry(ctx context.Context, body []byte, model string) (*Response, error) {
	url := c.baseURL + "/v1beta/models/" + model + ":generateContent"
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &RequestError{Model: model, Err: err}
			}
		}

		resp, err := c.post(ctx, url, body)
		if err != nil {
			lastErr = &RequestError{Model: model, Err: err}
			if ctx.Err() != nil || attempt == c.maxRetries {
				break
			}
			wait := backoff(attempt)
			metrics.RecordGeminiRetry(model, 0)
			c.logger.Warn().Err(err).Str("model", model).Int("attempt", attempt).Int("max_attempts", c.maxRetries).
				Dur("retry_in", wait).Msg("Gemini transport error")
			if err := c.sleep(ctx, wait); err != nil {
				break
			}
			continue
		}

		if retryableStatuses[resp.StatusCode] && attempt < c.maxRetries {
			drainAndClose(resp.Body)
			wait := backoff(attempt)
			metrics.RecordGeminiRetry(model, resp.StatusCode)
			c.logger.Warn().Int("status", resp.StatusCode).Str("model", model).Int("attempt", attempt).
				Int("max_attempts", c.maxRetries).Dur("retry_in", wait).Msg("Gemini transient status")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, &RequestError{Model: model, Err: err}
			}
			continue
		}

		return decodeResponse(resp, model)
	}

	if lastErr == nil {
		lastErr = &RequestError{Model: model, Err: errors.New("request failed unexpectedly")}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	return c.http.Do(req)
}

func decodeResponse(resp *http.Response, model string) (*Response, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Model:      model,
			Body:       truncateRunes(string(raw), maxErrorBody),
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini response model=%s: %w", model, err)
	}
	return &out, nil
}

// GenerateJSON asks the text model for a JSON answer to prompt.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, temperature float64) (*Response, error) {
	return c.Generate(ctx, &Request{
		Contents: userText(prompt),
		GenerationConfig: GenerationConfig{
			Temperature:      temperature,
			ResponseMimeType: "application/json",
		},
	}, c.model)
}

// GenerateImage asks the image model for a picture of dishName and returns
// it as an unsaved DishImage. The decoded payload must not exceed the
// configured byte limit.
func (c *Client) GenerateImage(ctx context.Context, dishName string) (*models.DishImage, error) {
	prompt := taste.BuildImagePrompt(dishName)
	resp, err := c.Generate(ctx, &Request{
		Contents: userText(prompt),
		GenerationConfig: GenerationConfig{
			Temperature:        TemperatureImage,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}, c.imageModel)
	if err != nil {
		return nil, err
	}

	mimeType, data, err := ExtractFirstInlineImage(resp)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	if len(raw) > c.imageMaxBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrImageTooLarge, len(raw), c.imageMaxBytes)
	}

	return &models.DishImage{
		Provider: models.SourceGemini,
		Model:    c.imageModel,
		Prompt:   prompt,
		MimeType: mimeType,
		DataURL:  "data:" + mimeType + ";base64," + data,
	}, nil
}

func backoff(attempt int) time.Duration {
	return min(maxBackoff, time.Duration(attempt)*backoffStep)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	_ = body.Close()
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
