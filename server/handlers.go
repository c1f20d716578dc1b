package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/cache"
	"github.com/revline/algateway/dispatch"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/tools"
)

const maxArgsBytes = 1 << 20

// X-Cache values.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(tools.KindBadInput), "The request body could not be read.")
		return
	}
	if len(body) > maxArgsBytes {
		writeError(w, http.StatusRequestEntityTooLarge, string(tools.KindBadInput), "Arguments are too large.")
		return
	}

	meta := dispatch.Meta{ScopeKey: auth.ScopeKeyFromContext(r.Context())}
	res := s.dispatcher.Dispatch(r.Context(), r.PathValue("name"), body, &meta)

	w.Header().Set("X-Cache", cacheStatus(meta))
	if !res.OK() {
		w.Header().Set("X-Tool-Error", string(res.Err.Kind))
	}
	writeJSON(w, http.StatusOK, res)
}

func cacheStatus(m dispatch.Meta) string {
	switch {
	case m.CacheHit:
		return CacheHit
	case m.CacheEligible:
		return CacheMiss
	default:
		return CacheBypass
	}
}

// ToolInfo describes one tool in the listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Cached      bool   `json:"cached"`
	TTLSeconds  int    `json:"ttl_seconds,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	policy := s.dispatcher.Policy()
	list := s.dispatcher.Registry().Tools()
	out := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		info := ToolInfo{
			Name:        string(t.Name()),
			Category:    t.Category(),
			Description: t.Description(),
		}
		if ttl, ok := policy.TTL(info.Name); ok {
			info.Cached = true
			info.TTLSeconds = int(ttl.Seconds())
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out, "count": len(out)})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.dispatcher.Stats()
	if !ok {
		writeError(w, http.StatusNotImplemented, "unsupported", "The cache does not report statistics.")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		cache.Stats
		HitRate float64 `json:"hit_rate"`
	}{stats, stats.HitRate()})
}

// handleInvalidate requires an identified caller: anonymous clients share
// one scope and may not clear it for everyone.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id.IsAnonymous() {
		writeError(w, http.StatusForbidden, "forbidden", "Cache invalidation requires credentials.")
		return
	}

	tool := r.PathValue("tool")
	n, err := s.dispatcher.Invalidate(r.Context(), tool)
	if err != nil {
		var te *tools.Error
		switch {
		case errors.As(err, &te):
			writeJSON(w, http.StatusNotFound, te)
		case errors.Is(err, dispatch.ErrInvalidateUnsupported):
			writeError(w, http.StatusNotImplemented, "unsupported", "The cache cannot be invalidated by tool.")
		default:
			writeError(w, http.StatusInternalServerError, string(tools.KindUnexpected), "Invalidation failed.")
		}
		return
	}
	s.logger.Info(r.Context(), "cache invalidated by request",
		observe.F("request_id", RequestIDFromContext(r.Context())),
		observe.F("subject", id.Subject),
		observe.F("tool.name", tool),
		observe.F("removed", n))
	writeJSON(w, http.StatusOK, map[string]any{"tool": tool, "removed": n})
}

type errorBody struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Kind: kind, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
