// Package cache provides deterministic caching for tool executions.
//
// Keys are derived from a caller scope, the tool name and a canonical JSON
// rendering of the arguments, so equal argument trees share an entry no
// matter how maps were ordered. Lifetimes come from a per-tool TTL table in
// Policy; tools absent from the table are never cached, and failed
// executions are never stored.
package cache
