// Package server exposes the dispatcher over HTTP.
//
// Routes:
//
//	POST   /v1/tools/{name}   run a tool; body is the JSON arguments
//	GET    /v1/tools          list tools with their cache TTLs
//	GET    /v1/cache          result cache statistics
//	DELETE /v1/cache          drop every cached result
//	DELETE /v1/cache/{tool}   drop cached results of one tool
//	GET    /healthz /readyz /health
//	GET    /metrics
//
// Tool results are always answered with 200: a failed tool is a well-formed
// Result whose error kind is echoed in the X-Tool-Error header. X-Cache
// reports HIT, MISS or BYPASS for every tool call.
package server
