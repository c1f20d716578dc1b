package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// ExecutorFunc produces the serialized result for a cache miss.
// A non-nil error means the result must not be cached.
type ExecutorFunc func(ctx context.Context) ([]byte, error)

// Lookup describes what the middleware did for one call.
type Lookup struct {
	Key      string
	Hit      bool
	Eligible bool
	TTL      time.Duration
}

// CacheMiddleware wraps tool execution with caching.
type CacheMiddleware struct {
	cache  Cache
	keyer  Keyer
	policy Policy
	group  *singleflight.Group
}

// MiddlewareOption configures a CacheMiddleware.
type MiddlewareOption func(*CacheMiddleware)

// WithSingleflight collapses concurrent misses for the same key into one
// executor call. Without it, concurrent misses each execute and the last
// writer wins.
func WithSingleflight() MiddlewareOption {
	return func(m *CacheMiddleware) {
		m.group = &singleflight.Group{}
	}
}

// NewCacheMiddleware creates a new cache middleware.
// If keyer is nil, DefaultKeyer is used.
func NewCacheMiddleware(cache Cache, keyer Keyer, policy Policy, opts ...MiddlewareOption) *CacheMiddleware {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	m := &CacheMiddleware{
		cache:  cache,
		keyer:  keyer,
		policy: policy,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute runs the tool with caching.
// On cache hit, returns cached result without calling executor.
// On cache miss, calls executor and caches the result.
// Errors are NOT cached.
func (m *CacheMiddleware) Execute(
	ctx context.Context,
	scope string,
	tool string,
	args any,
	executor ExecutorFunc,
) ([]byte, Lookup, error) {
	ttl, ok := m.policy.TTL(tool)
	if !ok || m.cache == nil {
		result, err := executor(ctx)
		return result, Lookup{}, err
	}

	key := m.keyer.Key(scope, tool, args)
	lookup := Lookup{Key: key, Eligible: true, TTL: ttl}
	if ValidateKey(key) != nil {
		result, err := executor(ctx)
		return result, Lookup{Key: key}, err
	}

	if cached, hit := m.cache.Get(ctx, key); hit {
		lookup.Hit = true
		return cached, lookup, nil
	}

	if m.group == nil {
		result, err := m.fill(ctx, key, ttl, executor)
		return result, lookup, err
	}

	// The shared fill outlives any one caller's cancellation but keeps the
	// first caller's deadline. Each caller still stops waiting on its own ctx.
	ch := m.group.DoChan(key, func() (any, error) {
		fillCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			fillCtx, cancel = context.WithDeadline(fillCtx, deadline)
			defer cancel()
		}
		return m.fill(fillCtx, key, ttl, executor)
	})
	select {
	case res := <-ch:
		result, _ := res.Val.([]byte)
		return result, lookup, res.Err
	case <-ctx.Done():
		return nil, lookup, ctx.Err()
	}
}

func (m *CacheMiddleware) fill(ctx context.Context, key string, ttl time.Duration, executor ExecutorFunc) ([]byte, error) {
	result, err := executor(ctx)
	if err != nil {
		// Don't cache errors
		return result, err
	}
	_ = m.cache.Set(ctx, key, result, ttl)
	return result, nil
}

// Invalidate removes every cached entry for tool, or every entry when tool is empty.
// It returns the number of removed entries, or -1 when the cache cannot enumerate keys.
func (m *CacheMiddleware) Invalidate(ctx context.Context, tool string) int {
	pd, ok := m.cache.(PrefixDeleter)
	if !ok {
		return -1
	}
	if tool == "" {
		return pd.DeletePrefix(ctx, "cache:")
	}
	return pd.DeletePrefix(ctx, ToolPrefix(tool))
}
