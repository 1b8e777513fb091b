// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/tastedeck/internal/logging"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under suture.
//
// ListenAndServe runs in a goroutine. Serve returns when the server fails or
// ctx is canceled; on cancellation the server is shut down gracefully and
// the drain hooks run before Serve returns, so background work started by
// in-flight requests finishes inside the shutdown window.
//
//	server := &http.Server{Addr: ":8000", Handler: router.Setup()}
//	svc := services.NewHTTPServerService(server, 10*time.Second, services.WithDrain(deckService.Wait))
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
	addr            string
	drain           []func()
}

// HTTPOption configures an HTTPServerService.
type HTTPOption func(*HTTPServerService)

// WithDrain registers fn to run after the server has shut down.
func WithDrain(fn func()) HTTPOption {
	return func(h *HTTPServerService) {
		if fn != nil {
			h.drain = append(h.drain, fn)
		}
	}
}

// WithAddr records the listen address for log lines.
func WithAddr(addr string) HTTPOption {
	return func(h *HTTPServerService) { h.addr = addr }
}

// NewHTTPServerService wraps server. A non-positive shutdownTimeout uses 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration, opts ...HTTPOption) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	h := &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	log := logging.WithComponent(h.name)

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info().Str("addr", h.addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled; shut down on a fresh one.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh

		h.runDrain(shutdownCtx)
		log.Info().Msg("HTTP server stopped")
		return ctx.Err()
	}
}

// runDrain runs the drain hooks, giving up when ctx expires.
func (h *HTTPServerService) runDrain(ctx context.Context) {
	if len(h.drain) == 0 {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, fn := range h.drain {
			fn()
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn().Str("service", h.name).Msg("Drain hooks did not finish before shutdown timeout")
	}
}

// String implements fmt.Stringer; suture uses it in log events.
func (h *HTTPServerService) String() string {
	return h.name
}
