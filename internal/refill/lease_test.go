// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package refill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/tastedeck/internal/config"
)

// fakeRedis keeps one key in memory and evaluates the release script by
// comparing tokens.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
	evals  int
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (r *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return redis.NewBoolResult(false, r.setErr)
	}
	if _, ok := r.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	r.values[key] = value.(string)
	r.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (r *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals++
	if r.values[keys[0]] == args[0].(string) {
		delete(r.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (r *fakeRedis) Close() error {
	r.closed = true
	return nil
}

func TestRedisLeaseAcquireAndRelease(t *testing.T) {
	t.Parallel()

	rdb := newFakeRedis()
	lease := newRedisLease(rdb, "tastedeck:refill", time.Minute)

	release, ok, err := lease.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	if rdb.ttls["tastedeck:refill"] != time.Minute {
		t.Errorf("ttl = %v", rdb.ttls["tastedeck:refill"])
	}

	if _, ok, _ := lease.Acquire(context.Background()); ok {
		t.Fatal("second Acquire succeeded while held")
	}

	release()
	if _, held := rdb.values["tastedeck:refill"]; held {
		t.Error("key still present after release")
	}

	release2, ok, err := lease.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("re-Acquire = %v, %v", ok, err)
	}
	release2()
}

func TestRedisLeaseReleaseLeavesForeignToken(t *testing.T) {
	t.Parallel()

	rdb := newFakeRedis()
	lease := newRedisLease(rdb, "k", time.Minute)

	release, ok, _ := lease.Acquire(context.Background())
	if !ok {
		t.Fatal("Acquire failed")
	}
	// Lease expired and another replica took it.
	rdb.values["k"] = "someone-else"

	release()
	if rdb.values["k"] != "someone-else" {
		t.Error("release removed a lease it did not own")
	}
	if rdb.evals != 1 {
		t.Errorf("evals = %d, want 1", rdb.evals)
	}
}

func TestRedisLeaseError(t *testing.T) {
	t.Parallel()

	rdb := newFakeRedis()
	rdb.setErr = errors.New("connection refused")
	lease := newRedisLease(rdb, "k", 0)

	if lease.ttl != 15*time.Minute {
		t.Errorf("default ttl = %v", lease.ttl)
	}
	_, ok, err := lease.Acquire(context.Background())
	if ok || err == nil {
		t.Fatalf("Acquire = %v, %v; want error", ok, err)
	}
}

func TestNewRedisLeaseDisabled(t *testing.T) {
	t.Parallel()

	if l := NewRedisLease(&config.LockConfig{}); l != nil {
		t.Errorf("lease = %v, want nil without an address", l)
	}
	var nilLease *RedisLease
	if err := nilLease.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestRedisLeaseClose(t *testing.T) {
	t.Parallel()

	rdb := newFakeRedis()
	if err := newRedisLease(rdb, "k", time.Second).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !rdb.closed {
		t.Error("client not closed")
	}
}
