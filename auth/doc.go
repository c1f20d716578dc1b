// Package auth identifies the caller of a tool dispatch.
//
// Callers present a bearer JWT (HS256, issued by the product's session
// service) or a static API key for service-to-service use. The resulting
// Identity determines the cache scope key, so one user's cached tool results
// are never served to another. Requests without credentials are anonymous
// when the chain allows it and share the public scope.
package auth
