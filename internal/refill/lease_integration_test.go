// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

//go:build integration

package refill

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/testinfra"
)

func TestRedisLeaseAgainstRedis(t *testing.T) {
	testinfra.SkipIfShort(t)
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rc, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	testinfra.CleanupContainer(t, rc)

	cfg := &config.LockConfig{RedisAddr: rc.Addr, Key: "tastedeck:test-lock", TTL: 2 * time.Second}
	a := NewRedisLease(cfg)
	b := NewRedisLease(cfg)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	release, ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	if _, ok, err := b.Acquire(ctx); err != nil || ok {
		t.Fatalf("second replica acquired a held lease: ok=%v err=%v", ok, err)
	}

	release()

	releaseB, ok, err := b.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}

	// An expired lease re-taken by another holder must survive the old
	// holder's late release.
	time.Sleep(cfg.TTL + 500*time.Millisecond)
	releaseA, ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
	releaseB()
	if _, ok, _ := b.Acquire(ctx); ok {
		t.Error("stale release deleted the new holder's lease")
	}
	releaseA()
}
