package auth

import (
	"context"
	"net/http"
)

// Authenticator identifies the caller of a request.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: rejected credentials are returned as ErrInvalidCredentials,
//     ErrTokenExpired or ErrTokenMalformed; anything else is an internal error.
type Authenticator interface {
	Name() string

	// Supports reports whether the request carries credentials this
	// authenticator understands.
	Supports(h http.Header) bool

	Authenticate(ctx context.Context, h http.Header) (*Identity, error)
}

// Chain tries authenticators in order and uses the first that supports the
// request. With no supported credentials it returns an anonymous identity
// when AllowAnonymous is set.
type Chain struct {
	Authenticators []Authenticator
	AllowAnonymous bool
}

// NewChain creates a Chain.
func NewChain(allowAnonymous bool, auths ...Authenticator) *Chain {
	return &Chain{Authenticators: auths, AllowAnonymous: allowAnonymous}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Supports(h http.Header) bool {
	for _, a := range c.Authenticators {
		if a.Supports(h) {
			return true
		}
	}
	return c.AllowAnonymous
}

// Authenticate identifies the caller. A failure of the chosen authenticator
// is final; later authenticators are not consulted.
func (c *Chain) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	for _, a := range c.Authenticators {
		if a.Supports(h) {
			return a.Authenticate(ctx, h)
		}
	}
	if c.AllowAnonymous {
		return Anonymous(), nil
	}
	return nil, ErrMissingCredentials
}

var _ Authenticator = (*Chain)(nil)
