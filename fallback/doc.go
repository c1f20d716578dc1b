// Package fallback implements the tiered degradation used by tool handlers.
//
// Three independent axes are covered: Procedure (newer stored procedure, then
// legacy, only on a missing procedure), Search (semantic, then keyword) and
// Access/Source (privileged over restricted credentials, remote over bundled
// data). Every step-down is logged at warn level and counted, and the tier
// that answered is returned to the caller so it can be surfaced in results.
package fallback
