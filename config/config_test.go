package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/secret"
	"github.com/revline/algateway/tools"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Listen != ":8080" {
		t.Errorf("listen = %q, want :8080", cfg.Server.Listen)
	}
	if got := cfg.Cache.TTLs[string(tools.GetCarAIContext)]; got != 10*time.Minute {
		t.Errorf("get_car_ai_context ttl = %v, want 10m", got)
	}
	if _, ok := cfg.Cache.TTLs[string(tools.AnalyzeVehicleHealth)]; ok {
		t.Error("analyze_vehicle_health has a default ttl")
	}
	if cfg.Scoring.Urgent != 15 {
		t.Errorf("urgent weight = %d, want 15", cfg.Scoring.Urgent)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("AL_PG_PRIVILEGED", "postgres://svc@db/al")
	t.Setenv("AL_OPENAI_KEY", "sk-test-123")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "web_key"), []byte("exa-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	content := `
server:
  listen: ":9090"
cache:
  singleflight: true
  ttls:
    search_events: 30s
    search_web: 0s
store:
  privileged_dsn: ${AL_PG_PRIVILEGED}
  restricted_dsn: postgres://anon@db/al
embedding:
  api_key: secretref:env:AL_OPENAI_KEY
websearch:
  endpoint: https://search.example.com/v1
  api_key: secretref:file:web_key
scoring:
  urgent: 20
auth:
  allow_anonymous: false
  api_keys:
    - id: mobile
      sha256: "` + auth.HashAPIKey("k1") + `"
secrets:
  env: {}
  file:
    dir: ` + dir + `
`
	path := filepath.Join(dir, "algateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("unset fields should keep defaults, shutdown_timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Store.PrivilegedDSN != "postgres://svc@db/al" {
		t.Errorf("privileged dsn = %q", cfg.Store.PrivilegedDSN)
	}
	if cfg.Embedding.APIKey != "sk-test-123" {
		t.Errorf("embedding key = %q", cfg.Embedding.APIKey)
	}
	if cfg.WebSearch.APIKey != "exa-key" {
		t.Errorf("websearch key = %q", cfg.WebSearch.APIKey)
	}
	if cfg.Scoring.Urgent != 20 || cfg.Scoring.DueSoon != 5 {
		t.Errorf("scoring = %+v, want urgent overridden and the rest default", cfg.Scoring)
	}
	if !cfg.Cache.Singleflight {
		t.Error("singleflight not enabled")
	}

	p := cfg.Cache.Policy()
	if ttl, ok := p.TTL(string(tools.SearchEvents)); !ok || ttl != 30*time.Second {
		t.Errorf("search_events ttl = %v %v, want 30s", ttl, ok)
	}
	if _, ok := p.TTL(string(tools.SearchWeb)); ok {
		t.Error("a zero ttl should disable caching for search_web")
	}
	if ttl, _ := p.TTL(string(tools.GetCarDetails)); ttl != 10*time.Minute {
		t.Errorf("get_car_details ttl = %v, want the default 10m", ttl)
	}
	if p.MaxEntries != 10000 {
		t.Errorf("max entries = %d", p.MaxEntries)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(context.Background(), "/nonexistent/algateway.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"missing env", "store:\n  restricted_dsn: ${AL_TEST_UNSET_DSN}\n", secret.ErrMissingEnv},
		{"negative ttl", "cache:\n  ttls:\n    search_cars: -1m\n", ErrNegativeTTL},
		{"unknown tool", "cache:\n  ttls:\n    search_everything: 1m\n", ErrUnknownTool},
		{"empty listen", "server:\n  listen: \"\"\n", ErrNoListen},
		{"no auth", "auth:\n  allow_anonymous: false\n", ErrNoAuthenticators},
		{"unknown provider", "embedding:\n  api_key: secretref:vault:openai\n", secret.ErrProviderNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_Observe(t *testing.T) {
	cfg := Default()
	cfg.Observe.Metrics.Exporter = "graphite"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unknown metrics exporter")
	}
}

func TestValidate_EmbeddingCache(t *testing.T) {
	cfg := Default()
	if cfg.Embedding.CacheMaxEntries <= 0 || cfg.Embedding.JanitorInterval <= 0 {
		t.Errorf("embedding cache is unbounded by default: %+v", cfg.Embedding)
	}
	cfg.Embedding.CacheMaxEntries = -1
	if err := cfg.Validate(); !errors.Is(err, ErrNegativeLimit) {
		t.Errorf("err = %v, want ErrNegativeLimit", err)
	}
}

func TestCacheConfig_Disabled(t *testing.T) {
	cfg := Default()
	cfg.Cache.Enabled = false
	if cfg.Cache.Policy().ShouldCache() {
		t.Error("disabled cache still caches")
	}
}

func TestAuthConfig_Authenticator(t *testing.T) {
	a := AuthConfig{
		APIKeys: []auth.APIKey{{ID: "mobile", Hash: auth.HashAPIKey("k1")}},
		JWT:     JWTConfig{Secret: "s3cret"},
	}
	chain := a.Authenticator()
	if len(chain.Authenticators) != 2 {
		t.Fatalf("authenticators = %d, want 2", len(chain.Authenticators))
	}
	if chain.AllowAnonymous {
		t.Error("anonymous access should follow the config")
	}
}
