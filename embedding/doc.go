// Package embedding turns query text into vectors for semantic search.
//
// Client normalizes text before hashing it, so "Turbo  Lag" and "turbo lag"
// share one cached embedding. Only successful results are cached.
package embedding
