package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/dispatch"
	"github.com/revline/algateway/health"
	"github.com/revline/algateway/store"
	"github.com/revline/algateway/tools"
)

const testKey = "al-test-key"

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	st := store.NewMemory()
	st.Insert("cars",
		store.Row{"slug": "bmw-m3", "name": "M3", "make": "BMW", "model": "M3", "hp": 473},
	)
	reg := tools.New(tools.Deps{Restricted: st})
	d := dispatch.New(reg)

	chain := auth.NewChain(true, auth.NewAPIKeyAuthenticator(auth.APIKey{ID: "ops", Hash: auth.HashAPIKey(testKey)}))
	return New(Config{}, d, append([]Option{WithAuthenticator(chain)}, opts...)...)
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func withKey() http.Header {
	return http.Header{auth.APIKeyHeader: {testKey}}
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestTool_CacheHeader(t *testing.T) {
	s := newTestServer(t)
	args := `{"car_slug":"bmw-m3"}`

	first := do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", first.Code, first.Body.String())
	}
	if got := first.Header().Get("X-Cache"); got != CacheMiss {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}

	second := do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)
	if got := second.Header().Get("X-Cache"); got != CacheHit {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	car := decodeResult(t, second)["car"].(map[string]any)
	if car["slug"] != "bmw-m3" {
		t.Errorf("car = %v", car)
	}
}

func TestTool_ScopesAreIsolated(t *testing.T) {
	s := newTestServer(t)
	args := `{"car_slug":"bmw-m3"}`

	do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)
	rec := do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, withKey())
	if got := rec.Header().Get("X-Cache"); got != CacheMiss {
		t.Errorf("authenticated caller X-Cache = %q, want MISS in its own scope", got)
	}
}

func TestTool_UncachedToolBypasses(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tools/analyze_vehicle_health", `{"user_id":"u1","vehicle_id":"v1"}`, nil)
	if got := rec.Header().Get("X-Cache"); got != CacheBypass {
		t.Errorf("X-Cache = %q, want BYPASS", got)
	}
}

var testJWTSecret = []byte("garage-test-secret")

// newGarageServer serves per-user data for "owner" and accepts user tokens,
// the ops API key and anonymous callers.
func newGarageServer(t *testing.T) *Server {
	t.Helper()
	st := store.NewMemory()
	st.Insert("user_vehicles", store.Row{"id": "v1", "user_id": "owner", "make": "Porsche", "car_slug": "porsche-911-gt3", "year": 2014})
	st.Insert("user_favorites", store.Row{"user_id": "owner", "car_slug": "bmw-m3", "created_at": "2026-01-02"})
	d := dispatch.New(tools.New(tools.Deps{Privileged: st}))

	chain := auth.NewChain(true,
		auth.NewJWTAuthenticator(auth.JWTConfig{Secret: testJWTSecret}),
		auth.NewAPIKeyAuthenticator(auth.APIKey{ID: "ops", Hash: auth.HashAPIKey(testKey)}),
	)
	return New(Config{}, d, WithAuthenticator(chain))
}

func withToken(t *testing.T, subject string) http.Header {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(testJWTSecret)
	if err != nil {
		t.Fatal(err)
	}
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func TestTool_UserDataRequiresOwner(t *testing.T) {
	s := newGarageServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		header http.Header
		kind   tools.Kind
	}{
		{"anonymous context", "/v1/tools/get_user_context", `{"user_id":"owner"}`, nil, tools.KindConfigMissing},
		{"anonymous health", "/v1/tools/analyze_vehicle_health", `{"user_id":"owner","vehicle_id":"v1"}`, nil, tools.KindConfigMissing},
		{"api key", "/v1/tools/get_user_context", `{"user_id":"owner"}`, withKey(), tools.KindConfigMissing},
		{"other user context", "/v1/tools/get_user_context", `{"user_id":"owner"}`, withToken(t, "intruder"), tools.KindBadInput},
		{"other user health", "/v1/tools/analyze_vehicle_health", `{"user_id":"owner","vehicle_id":"v1"}`, withToken(t, "intruder"), tools.KindBadInput},
		{"other user's vehicle", "/v1/tools/analyze_vehicle_health", `{"vehicle_id":"v1"}`, withToken(t, "intruder"), tools.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body, tt.header)
			if got := rec.Header().Get("X-Tool-Error"); got != string(tt.kind) {
				t.Errorf("X-Tool-Error = %q, want %s", got, tt.kind)
			}
			if strings.Contains(rec.Body.String(), "Porsche") {
				t.Errorf("body leaks the owner's garage: %s", rec.Body.String())
			}
		})
	}

	rec := do(t, s, http.MethodPost, "/v1/tools/get_user_context", `{}`, withToken(t, "owner"))
	if got := rec.Header().Get("X-Tool-Error"); got != "" {
		t.Fatalf("owner got %s: %s", got, rec.Body.String())
	}
	body := decodeResult(t, rec)
	if body["user_id"] != "owner" || len(body["vehicles"].([]any)) != 1 {
		t.Errorf("body = %v", body)
	}
}

func TestTool_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name, path, body string
		kind             tools.Kind
	}{
		{"unknown tool", "/v1/tools/launch_rocket", `{}`, tools.KindUnknownTool},
		{"bad input", "/v1/tools/get_car_details", `{"car_slug":`, tools.KindBadInput},
		{"not found", "/v1/tools/get_car_details", `{"car_slug":"ford-model-t"}`, tools.KindNotFound},
		{"not configured", "/v1/tools/search_web", `{"query":"track day tires"}`, tools.KindConfigMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 for a failed tool", rec.Code)
			}
			if got := rec.Header().Get("X-Tool-Error"); got != string(tt.kind) {
				t.Errorf("X-Tool-Error = %q, want %s", got, tt.kind)
			}
			body := decodeResult(t, rec)
			if body["kind"] != string(tt.kind) || body["error"] == "" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestTool_ArgsTooLarge(t *testing.T) {
	s := newTestServer(t)
	big := `{"query":"` + strings.Repeat("a", maxArgsBytes) + `"}`
	rec := do(t, s, http.MethodPost, "/v1/tools/search_cars", big, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	st := store.NewMemory()
	d := dispatch.New(tools.New(tools.Deps{Restricted: st}))
	chain := auth.NewChain(false, auth.NewAPIKeyAuthenticator(auth.APIKey{ID: "ops", Hash: auth.HashAPIKey(testKey)}))
	s := New(Config{}, d, WithAuthenticator(chain))

	rec := do(t, s, http.MethodGet, "/v1/tools", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if body := decodeResult(t, rec); body["kind"] != "unauthorized" {
		t.Errorf("body = %v", body)
	}

	rec = do(t, s, http.MethodGet, "/v1/tools", "", http.Header{auth.APIKeyHeader: {"wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want 401", rec.Code)
	}

	if rec := do(t, s, http.MethodGet, "/v1/tools", "", withKey()); rec.Code != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", rec.Code)
	}
}

func TestListTools(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/tools", "", nil)
	var body struct {
		Tools []ToolInfo `json:"tools"`
		Count int        `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 19 || len(body.Tools) != 19 {
		t.Fatalf("count = %d, want 19", body.Count)
	}
	for _, info := range body.Tools {
		switch info.Name {
		case string(tools.AnalyzeVehicleHealth):
			if info.Cached {
				t.Error("analyze_vehicle_health listed as cached")
			}
		case string(tools.SearchEvents):
			if !info.Cached || info.TTLSeconds != 120 {
				t.Errorf("search_events = %+v, want cached for 120s", info)
			}
		}
	}
}

func TestInvalidate(t *testing.T) {
	s := newTestServer(t)
	args := `{"car_slug":"bmw-m3"}`
	do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)

	if rec := do(t, s, http.MethodDelete, "/v1/cache/get_car_details", "", nil); rec.Code != http.StatusForbidden {
		t.Errorf("anonymous invalidate status = %d, want 403", rec.Code)
	}

	rec := do(t, s, http.MethodDelete, "/v1/cache/get_car_details", "", withKey())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body := decodeResult(t, rec); body["removed"] != float64(1) {
		t.Errorf("body = %v, want removed=1", body)
	}

	again := do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)
	if got := again.Header().Get("X-Cache"); got != CacheMiss {
		t.Errorf("X-Cache after invalidate = %q, want MISS", got)
	}

	if rec := do(t, s, http.MethodDelete, "/v1/cache/launch_rocket", "", withKey()); rec.Code != http.StatusNotFound {
		t.Errorf("unknown tool invalidate status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/v1/cache", "", withKey()); rec.Code != http.StatusOK {
		t.Errorf("invalidate all status = %d", rec.Code)
	}
}

func TestCacheStats(t *testing.T) {
	s := newTestServer(t)
	args := `{"car_slug":"bmw-m3"}`
	do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)
	do(t, s, http.MethodPost, "/v1/tools/get_car_details", args, nil)

	body := decodeResult(t, do(t, s, http.MethodGet, "/v1/cache", "", nil))
	if body["entries"] != float64(1) || body["hits"] != float64(1) || body["hit_rate"] != 0.5 {
		t.Errorf("stats = %v", body)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/tools", "", nil)
	if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
		t.Errorf("generated request id %q is not a UUID", rec.Header().Get(RequestIDHeader))
	}

	id := uuid.NewString()
	rec = do(t, s, http.MethodGet, "/v1/tools", "", http.Header{RequestIDHeader: {id}})
	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request id = %q, want the inbound %q", got, id)
	}

	rec = do(t, s, http.MethodGet, "/v1/tools", "", http.Header{RequestIDHeader: {"<script>"}})
	if got := rec.Header().Get(RequestIDHeader); got == "<script>" {
		t.Error("malformed inbound request id echoed back")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	agg := health.NewAggregator(time.Second)
	agg.Register("store.restricted", health.PingCheck(store.NewMemory(), true))

	reg := prometheus.NewRegistry()
	calls := prometheus.NewCounter(prometheus.CounterOpts{Name: "al_test_total", Help: "test"})
	reg.MustRegister(calls)
	calls.Inc()

	s := newTestServer(t, WithHealth(agg), WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	if rec := do(t, s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("/readyz = %d %q", rec.Code, rec.Body.String())
	}
	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "al_test_total 1") {
		t.Errorf("/metrics = %d\n%s", rec.Code, rec.Body.String())
	}
}
