package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("Get() on empty cache should miss")
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Errorf("Get() = %q, %v; want v, true", got, ok)
	}
}

func TestMemoryCache_ZeroTTLNotStored(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 0)
	_ = c.Set(ctx, "n", []byte("v"), -time.Second)

	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(DefaultPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 10*time.Minute)

	clock.Advance(10*time.Minute - time.Nanosecond)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should be live just before expiry")
	}

	clock.Advance(time.Nanosecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry should be expired at exactly expiresAt")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestMemoryCache_MaxTTLClamp(t *testing.T) {
	clock := newFakeClock()
	policy := Policy{MaxTTL: time.Minute}
	c := NewMemoryCache(policy, WithClock(clock.Now))
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Hour)
	clock.Advance(time.Minute)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("TTL should be clamped to MaxTTL")
	}
}

func TestMemoryCache_Overwrite(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("one"), time.Minute)
	_ = c.Set(ctx, "k", []byte("two"), time.Minute)

	got, _ := c.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("Get() = %q, want two", got)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("deleted key should miss")
	}
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	_ = c.Set(ctx, "cache:search_cars:a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "cache:search_cars:b", []byte("2"), time.Minute)
	_ = c.Set(ctx, "cache:get_car_details:a", []byte("3"), time.Minute)

	if n := c.DeletePrefix(ctx, ToolPrefix("search_cars")); n != 2 {
		t.Errorf("DeletePrefix() = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	_, _ = c.Get(ctx, "k")
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "k")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(DefaultPolicy(), WithClock(clock.Now))
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), time.Minute)
	_ = c.Set(ctx, "long", []byte("v"), time.Hour)

	clock.Advance(2 * time.Minute)
	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Error("unexpired entry should survive sweep")
	}
}

func TestMemoryCache_MaxEntriesEvictsSoonestExpiry(t *testing.T) {
	c := NewMemoryCache(Policy{MaxEntries: 2})
	ctx := context.Background()

	_ = c.Set(ctx, "soon", []byte("v"), time.Minute)
	_ = c.Set(ctx, "later", []byte("v"), time.Hour)
	_ = c.Set(ctx, "new", []byte("v"), time.Hour)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get(ctx, "soon"); ok {
		t.Error("entry closest to expiry should be evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestMemoryCache_StartJanitor(t *testing.T) {
	clock := newFakeClock()
	c := NewMemoryCache(DefaultPolicy(), WithClock(clock.Now))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	clock.Advance(time.Hour)
	c.StartJanitor(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor did not sweep expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(DefaultPolicy())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = c.Set(ctx, key, []byte(key), time.Minute)
			if v, ok := c.Get(ctx, key); ok && string(v) != key {
				t.Errorf("Get(%s) = %s", key, v)
			}
			_ = c.Delete(ctx, key)
		}(i)
	}
	wg.Wait()
}
