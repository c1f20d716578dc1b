package cache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

var benchArgs = map[string]any{
	"query": "e46 m3 rod bearings",
	"filters": map[string]any{
		"make":     "BMW",
		"year_min": 2001,
		"year_max": 2006,
	},
	"limit": 10,
}

func BenchmarkKeyer_Key(b *testing.B) {
	k := NewDefaultKeyer()
	for b.Loop() {
		_ = k.Key("public", "search_cars", benchArgs)
	}
}

func BenchmarkMemoryCache_GetParallel(b *testing.B) {
	ctx := context.Background()
	c := NewMemoryCache(DefaultPolicy())
	keys := make([]string, 64)
	for i := range keys {
		keys[i] = "cache:get_car_details:" + strconv.Itoa(i)
		_ = c.Set(ctx, keys[i], []byte(`{"slug":"bmw-m3"}`), time.Hour)
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = c.Get(ctx, keys[i%len(keys)])
			i++
		}
	})
}

func BenchmarkMemoryCache_SetBounded(b *testing.B) {
	ctx := context.Background()
	p := DefaultPolicy()
	p.MaxEntries = 1024
	c := NewMemoryCache(p)
	value := []byte(`{"results":[],"count":0}`)

	i := 0
	for b.Loop() {
		_ = c.Set(ctx, "cache:search_parts:"+strconv.Itoa(i), value, time.Minute)
		i++
	}
}

func BenchmarkMiddleware_Hit(b *testing.B) {
	ctx := context.Background()
	p := DefaultPolicy().WithTTL("get_car_details", 10*time.Minute)
	m := NewCacheMiddleware(NewMemoryCache(p), nil, p)
	fill := func(context.Context) ([]byte, error) { return []byte(`{"slug":"bmw-m3"}`), nil }
	args := map[string]any{"slug": "bmw-m3"}
	_, _, _ = m.Execute(ctx, "public", "get_car_details", args, fill)

	for b.Loop() {
		_, _, _ = m.Execute(ctx, "public", "get_car_details", args, fill)
	}
}
