package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyHeader carries service API keys.
const APIKeyHeader = "X-API-Key"

// APIKey is a configured service credential. Only the SHA-256 hex digest
// of the key is kept.
type APIKey struct {
	ID   string `yaml:"id"`
	Hash string `yaml:"sha256"`
}

// APIKeyAuthenticator accepts keys from a fixed set.
type APIKeyAuthenticator struct {
	keys []APIKey
}

// NewAPIKeyAuthenticator creates an authenticator over keys.
func NewAPIKeyAuthenticator(keys ...APIKey) *APIKeyAuthenticator {
	out := make([]APIKey, 0, len(keys))
	for _, k := range keys {
		k.Hash = strings.ToLower(strings.TrimSpace(k.Hash))
		if k.ID != "" && k.Hash != "" {
			out = append(out, k)
		}
	}
	return &APIKeyAuthenticator{keys: out}
}

func (a *APIKeyAuthenticator) Name() string { return "api_key" }

func (a *APIKeyAuthenticator) Supports(h http.Header) bool {
	return strings.TrimSpace(h.Get(APIKeyHeader)) != ""
}

// Authenticate compares the presented key's digest against every
// configured key in constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, h http.Header) (*Identity, error) {
	key := strings.TrimSpace(h.Get(APIKeyHeader))
	if key == "" {
		return nil, ErrMissingCredentials
	}
	digest := []byte(HashAPIKey(key))

	var match *APIKey
	for i := range a.keys {
		if subtle.ConstantTimeCompare(digest, []byte(a.keys[i].Hash)) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Subject: match.ID, Method: MethodAPIKey}, nil
}

// HashAPIKey returns the digest stored in configuration for key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
