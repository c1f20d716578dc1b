package dispatch

import (
	"encoding/json"
	"time"

	"github.com/revline/algateway/tools"
)

// Meta carries per-call metadata in and out of Dispatch.
type Meta struct {
	// ScopeKey partitions the cache namespace. Callers set it.
	ScopeKey string

	// Set by Dispatch.
	Tool          string
	CacheHit      bool
	CacheEligible bool
	Duration      time.Duration
}

// Result is the outcome of one dispatch: a JSON payload or an error, never both.
type Result struct {
	Payload json.RawMessage
	Err     *tools.Error
}

// OK reports whether the dispatch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// MarshalJSON renders the payload on success and
// {"error": ..., "suggestion": ..., "kind": ...} on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err)
	}
	if len(r.Payload) == 0 {
		return []byte("null"), nil
	}
	return r.Payload, nil
}

func failed(err *tools.Error) Result {
	return Result{Err: err}
}
