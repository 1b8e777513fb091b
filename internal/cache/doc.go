// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package cache provides a thread-safe in-memory cache with TTL expiration.

It memoizes upstream results that are expensive to recompute, such as taste
analysis summaries. Entries expire lazily on Get; a sweep of expired entries
runs at most once per TTL during Set, so no background goroutine is needed
and a Cache can be dropped without being closed.

# Usage Example

	c := cache.New(5*time.Minute, 1024)
	key := cache.GenerateKey("analyze", req)
	if v, ok := c.Get(key); ok {
	    return v.(*models.AnalyzeResponse), nil
	}
	resp := compute()
	c.Set(key, resp)

# Keys

GenerateKey hashes the JSON form of its parameters with SHA-256, so logically
equal requests share a key regardless of how they were built.

# Thread Safety

All methods are safe for concurrent use. A nil *Cache is a valid disabled
cache: Get always misses and Set is a no-op.
*/
package cache
