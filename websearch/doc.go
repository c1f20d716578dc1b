// Package websearch is the client for the external web-search provider.
//
// Requests are POSTed as {"query", "num_results"} with the key in the
// x-api-key header and pass through a rate limiter, circuit breaker, retry
// on 5xx/429, and a per-attempt timeout.
package websearch
