// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCacheBasicOperations(t *testing.T) {
	t.Parallel()
	c := New(1*time.Minute, 0)

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	if _, exists = c.Get("key2"); exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheExpiration(t *testing.T) {
	t.Parallel()
	c := New(50*time.Millisecond, 0)

	c.Set("key1", "value1")
	if _, exists := c.Get("key1"); !exists {
		t.Fatal("Expected key1 to exist immediately after set")
	}

	time.Sleep(100 * time.Millisecond)

	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, len=%d", c.Len())
	}
}

func TestCacheDisabled(t *testing.T) {
	t.Parallel()

	for _, ttl := range []time.Duration{0, -time.Second} {
		c := New(ttl, 10)
		if c != nil {
			t.Fatalf("New(%v) = %v, want nil", ttl, c)
		}
		// Every method is safe on a nil cache.
		c.Set("k", "v")
		if _, ok := c.Get("k"); ok {
			t.Error("nil cache returned a hit")
		}
		if c.Len() != 0 || c.HitRate() != 0 {
			t.Error("nil cache reported entries")
		}
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()
	c := New(time.Minute, 0)

	c.Set("key1", "value1")
	c.Get("key1")
	c.Get("key1")
	c.Get("missing")

	stats := c.GetStats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.TotalKeys != 1 {
		t.Errorf("stats = %+v", stats)
	}

	hitRate := c.HitRate()
	expected := 66.66666666666667
	if hitRate < expected-0.01 || hitRate > expected+0.01 {
		t.Errorf("Expected hit rate around %.2f%%, got %.2f%%", expected, hitRate)
	}
}

func TestCacheCapacityEvictsSoonestExpiry(t *testing.T) {
	t.Parallel()
	c := New(time.Minute, 3)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
		time.Sleep(2 * time.Millisecond)
	}
	c.Set("key-3", 3)

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("key-0"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	for _, key := range []string{"key-1", "key-2", "key-3"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Expected %s to survive", key)
		}
	}

	// Overwriting an existing key never evicts.
	c.Set("key-3", 30)
	if c.Len() != 3 {
		t.Errorf("len after overwrite = %d", c.Len())
	}
}

func TestCacheSetSweepsExpired(t *testing.T) {
	t.Parallel()
	c := New(30*time.Millisecond, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(60 * time.Millisecond)
	c.Set("c", 3)

	if c.Len() != 1 {
		t.Errorf("len = %d, want 1 after sweep", c.Len())
	}
	stats := c.GetStats()
	if stats.Evictions != 2 {
		t.Errorf("evictions = %d, want 2", stats.Evictions)
	}
	if stats.LastCleanup.IsZero() {
		t.Error("Expected LastCleanup to be set")
	}
}

func TestCacheConcurrency(t *testing.T) {
	t.Parallel()
	c := New(time.Minute, 16)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", j%20)
				c.Set(key, id)
				c.Get(key)
				c.Get(fmt.Sprintf("absent-%d", j))
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("len = %d exceeds capacity", c.Len())
	}
	stats := c.GetStats()
	if stats.Hits == 0 && stats.Misses == 0 {
		t.Error("Expected some cache activity from concurrent operations")
	}
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	type params struct {
		TotalSwipes int
		Liked       []string
	}

	tests := []struct {
		name string
		a, b interface{}
		same bool
	}{
		{"identical", params{3, []string{"甲"}}, params{3, []string{"甲"}}, true},
		{"different count", params{3, nil}, params{4, nil}, false},
		{"different slice", params{3, []string{"甲"}}, params{3, []string{"乙"}}, false},
		{"nil params", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ka := GenerateKey("analyze", tt.a)
			kb := GenerateKey("analyze", tt.b)
			if (ka == kb) != tt.same {
				t.Errorf("keys %q and %q: same=%v, want %v", ka, kb, ka == kb, tt.same)
			}
			if !strings.HasPrefix(ka, "analyze:") {
				t.Errorf("key %q missing method prefix", ka)
			}
		})
	}
}

func TestGenerateKeyUnmarshalable(t *testing.T) {
	t.Parallel()

	key := GenerateKey("TestMethod", struct{ Ch chan int }{Ch: make(chan int)})
	if !strings.HasPrefix(key, "TestMethod:") {
		t.Errorf("Expected key to contain method name, got: %s", key)
	}
}

func BenchmarkCacheSet(b *testing.B) {
	c := New(time.Minute, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set("key", "value")
	}
}

func BenchmarkCacheGet(b *testing.B) {
	c := New(time.Minute, 0)
	c.Set("key", "value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key")
	}
}
