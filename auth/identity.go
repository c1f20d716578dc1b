package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Method records how a caller was identified.
type Method string

const (
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
	// MethodLocal marks an operator acting as a user from the command line.
	MethodLocal Method = "local"
)

// PublicScope is the cache scope shared by anonymous callers.
const PublicScope = "public"

// Identity is an authenticated caller.
type Identity struct {
	// Subject is the user ID for JWT callers and the key ID for API keys.
	Subject   string
	Method    Method
	Claims    map[string]any
	ExpiresAt time.Time
}

// Anonymous returns the identity of an unauthenticated caller.
func Anonymous() *Identity {
	return &Identity{Method: MethodAnonymous}
}

// Local returns the identity of an operator acting as user.
func Local(user string) *Identity {
	return &Identity{Subject: user, Method: MethodLocal}
}

// IsAnonymous reports whether the caller presented no credentials.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == MethodAnonymous || id.Subject == ""
}

// ScopeKey partitions the tool cache by caller. The subject is hashed so
// user IDs never appear in cache keys or logs.
func (id *Identity) ScopeKey() string {
	if id.IsAnonymous() {
		return PublicScope
	}
	sum := sha256.Sum256([]byte(string(id.Method) + ":" + id.Subject))
	return string(id.Method) + ":" + hex.EncodeToString(sum[:8])
}

// UserID returns the end user the caller acts as. Only user tokens and
// local operator sessions carry one; API keys identify services.
func (id *Identity) UserID() string {
	if id.IsAnonymous() {
		return ""
	}
	switch id.Method {
	case MethodJWT, MethodLocal:
		return id.Subject
	}
	return ""
}
