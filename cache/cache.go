package cache

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// MaxKeyLength bounds keys accepted by ValidateKey. Keys built by
// DefaultKeyer are far shorter; the limit guards custom Keyers.
const MaxKeyLength = 512

var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Cache stores serialized tool results under derived keys.
//
// Contract:
// - Concurrency: implementations are safe for concurrent use.
// - Get never errors; a miss or an expired entry is (nil, false).
// - Set publishes value and expiry together, so a reader never observes
// one without the other. A ttl <= 0 stores nothing.
// - Delete is idempotent.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PrefixDeleter is implemented by caches that can drop every key sharing a
// prefix. Per-tool invalidation depends on it.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) int
}

// Stats is a snapshot of cache bookkeeping, served on the admin endpoint.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// HitRate is hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if lookups := s.Hits + s.Misses; lookups > 0 {
		return float64(s.Hits) / float64(lookups)
	}
	return 0
}

// ValidateKey rejects blank keys, keys longer than MaxKeyLength and keys
// containing control characters.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return ErrInvalidKey
	}
	return nil
}
