package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/revline/algateway/cache"
)

// Defaults for Client.
const (
	DefaultMaxChars   = 8000
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 5000
)

// Sentinel errors for embedding operations.
var (
	// ErrNotConfigured reports missing provider credentials. No I/O happens.
	ErrNotConfigured = errors.New("embedding: provider not configured")

	// ErrEmptyInput reports text that is empty after normalization.
	ErrEmptyInput = errors.New("embedding: input is empty")
)

// Result is one embedding vector and the model that produced it.
type Result struct {
	Vector []float32 `json:"embedding"`
	Model  string    `json:"model"`
}

// Provider produces embeddings for already normalized text.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Embed must honor cancellation and deadlines.
type Provider interface {
	Embed(ctx context.Context, text string) (Result, error)
}

// Client embeds text through a Provider and memoizes successful results
// keyed by the normalized text.
type Client struct {
	provider   Provider
	cache      *cache.MemoryCache
	ttl        time.Duration
	maxChars   int
	maxEntries int
}

// Option configures a Client.
type Option func(*Client)

// WithTTL sets how long successful embeddings are reused.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxChars caps normalized input length in runes.
func WithMaxChars(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxChars = n
		}
	}
}

// WithMaxEntries bounds how many embeddings are kept. The entry closest to
// expiry is evicted when the bound is reached.
func WithMaxEntries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithCache replaces the embedding cache, mainly to inject a clock in tests.
func WithCache(mc *cache.MemoryCache) Option {
	return func(c *Client) {
		if mc != nil {
			c.cache = mc
		}
	}
}

// NewClient creates a Client. A nil provider yields a Client whose Embed
// always returns ErrNotConfigured.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		ttl:        DefaultTTL,
		maxChars:   DefaultMaxChars,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = cache.NewMemoryCache(cache.Policy{MaxTTL: c.ttl, MaxEntries: c.maxEntries})
	}
	return c
}

// Configured reports whether a provider is present.
func (c *Client) Configured() bool {
	return c != nil && c.provider != nil
}

// Embed returns the embedding for text, serving repeated queries from cache.
// Failures are never cached.
func (c *Client) Embed(ctx context.Context, text string) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	normalized := Normalize(text, c.maxChars)
	if normalized == "" {
		return Result{}, ErrEmptyInput
	}

	key := Key(normalized)
	if raw, ok := c.cache.Get(ctx, key); ok {
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		_ = c.cache.Delete(ctx, key)
	}

	res, err := c.provider.Embed(ctx, normalized)
	if err != nil {
		return Result{}, fmt.Errorf("embedding: %w", err)
	}
	if len(res.Vector) == 0 {
		return Result{}, errors.New("embedding: provider returned an empty vector")
	}

	if raw, err := json.Marshal(res); err == nil {
		_ = c.cache.Set(ctx, key, raw, c.ttl)
	}
	return res, nil
}

// Stats returns embedding cache counters.
func (c *Client) Stats() cache.Stats {
	return c.cache.Stats()
}

// StartJanitor sweeps expired embeddings every interval until ctx is done.
func (c *Client) StartJanitor(ctx context.Context, interval time.Duration) {
	c.cache.StartJanitor(ctx, interval)
}

// Normalize lowercases text, trims it, collapses whitespace runs to a single
// space and truncates to maxChars runes.
func Normalize(text string, maxChars int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if maxChars <= 0 {
		return normalized
	}
	runes := []rune(normalized)
	if len(runes) <= maxChars {
		return normalized
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}

// Key is the cache key for normalized text.
func Key(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "embed:" + hex.EncodeToString(sum[:])
}

// FormatVector renders a vector in the pgvector text form, e.g. [0.1,0.2].
func FormatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", f)
	}
	b.WriteByte(']')
	return b.String()
}
