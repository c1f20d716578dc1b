package cache

import "time"

// Policy configures caching behavior.
type Policy struct {
	// DefaultTTL is the TTL for tools missing from TTLs.
	// If zero, unlisted tools are not cached.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// TTLs maps tool names to their cache lifetime. A zero or negative
	// entry marks the tool as never cached.
	TTLs map[string]time.Duration

	// MaxEntries bounds the memory cache. Zero means unbounded.
	MaxEntries int
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 0 (only listed tools are cached), MaxTTL: 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		MaxTTL: 1 * time.Hour,
		TTLs:   map[string]time.Duration{},
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// WithTTL returns a copy of p with tool's TTL set.
func (p Policy) WithTTL(tool string, ttl time.Duration) Policy {
	ttls := make(map[string]time.Duration, len(p.TTLs)+1)
	for k, v := range p.TTLs {
		ttls[k] = v
	}
	ttls[tool] = ttl
	p.TTLs = ttls
	return p
}

// ShouldCache returns true if caching is enabled for at least one tool.
func (p Policy) ShouldCache() bool {
	if p.DefaultTTL > 0 {
		return true
	}
	for _, ttl := range p.TTLs {
		if ttl > 0 {
			return true
		}
	}
	return false
}

// TTL returns the lifetime for tool, clamped to MaxTTL, and whether it is
// cacheable at all.
func (p Policy) TTL(tool string) (time.Duration, bool) {
	ttl, ok := p.TTLs[tool]
	if !ok {
		ttl = p.DefaultTTL
	}
	if ttl <= 0 {
		return 0, false
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl, true
}
