// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package refill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/tastedeck/internal/config"
	"github.com/tomtom215/tastedeck/internal/logging"
)

// Lease is a cross-process refill guard. Acquire reports acquired=false
// when another holder owns it; release must be called once when acquired.
type Lease interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lease re-taken by another replica is left alone.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// redisCommander is the part of *redis.Client the lease uses.
type redisCommander interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// RedisLease implements Lease with SET NX PX and a token-checked delete.
type RedisLease struct {
	client redisCommander
	key    string
	ttl    time.Duration
}

// NewRedisLease connects to the configured Redis. It returns nil when no
// address is configured.
func NewRedisLease(cfg *config.LockConfig) *RedisLease {
	if !cfg.Enabled() {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return newRedisLease(rdb, cfg.Key, cfg.TTL)
}

func newRedisLease(client redisCommander, key string, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLease{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease for the configured TTL.
func (l *RedisLease) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err(); err != nil {
			logging.Warn().Err(err).Str("key", l.key).Msg("Failed to release refill lease")
		}
	}
	return release, true, nil
}

// Close closes the Redis connection pool.
func (l *RedisLease) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}
