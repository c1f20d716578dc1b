package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/cache"
	"github.com/revline/algateway/healthscore"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/secret"
	"github.com/revline/algateway/tools"
)

// Validation errors.
var (
	ErrNoListen         = errors.New("config: server.listen is empty")
	ErrNegativeTTL      = errors.New("config: negative cache ttl")
	ErrUnknownTool      = errors.New("config: unknown tool in cache ttl table")
	ErrNegativeLimit    = errors.New("config: negative cache size")
	ErrNoAuthenticators = errors.New("config: no authenticator configured and anonymous access disabled")
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Cache     CacheConfig         `yaml:"cache"`
	Store     StoreConfig         `yaml:"store"`
	Embedding EmbeddingConfig     `yaml:"embedding"`
	WebSearch WebSearchConfig     `yaml:"websearch"`
	Auth      AuthConfig          `yaml:"auth"`
	Scoring   healthscore.Weights `yaml:"scoring"`
	Observe   observe.Config      `yaml:"observe"`

	// Secrets configures secretref providers by name. Empty enables the
	// built-in env and file providers.
	Secrets map[string]map[string]any `yaml:"secrets"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthTimeout   time.Duration `yaml:"health_timeout"`
}

// CacheConfig controls the tool result cache.
type CacheConfig struct {
	Enabled         bool                     `yaml:"enabled"`
	MaxEntries      int                      `yaml:"max_entries"`
	MaxTTL          time.Duration            `yaml:"max_ttl"`
	TTLs            map[string]time.Duration `yaml:"ttls"`
	Singleflight    bool                     `yaml:"singleflight"`
	JanitorInterval time.Duration            `yaml:"janitor_interval"`
}

// StoreConfig holds the two database access tiers. Either DSN may be empty.
type StoreConfig struct {
	PrivilegedDSN  string        `yaml:"privileged_dsn"`
	RestrictedDSN  string        `yaml:"restricted_dsn"`
	Schema         string        `yaml:"schema"`
	MaxConns       int32         `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding provider.
type EmbeddingConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	// CacheMaxEntries bounds the embedding cache.
	CacheMaxEntries int           `yaml:"cache_max_entries"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// WebSearchConfig configures the web-search provider.
type WebSearchConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

// AuthConfig selects the authenticators in front of the HTTP transport.
type AuthConfig struct {
	AllowAnonymous bool          `yaml:"allow_anonymous"`
	JWT            JWTConfig     `yaml:"jwt"`
	APIKeys        []auth.APIKey `yaml:"api_keys"`
}

// JWTConfig configures HS256 bearer tokens. An empty secret disables JWT.
type JWTConfig struct {
	Secret       string        `yaml:"secret"`
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	SubjectClaim string        `yaml:"subject_claim"`
	Leeway       time.Duration `yaml:"leeway"`
}

// Default returns a Config with the standard TTL table and scoring weights.
func Default() *Config {
	ttls := make(map[string]time.Duration)
	for name, ttl := range tools.DefaultTTLs() {
		ttls[string(name)] = ttl
	}
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			HealthTimeout:   2 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:         true,
			MaxEntries:      10000,
			MaxTTL:          time.Hour,
			TTLs:            ttls,
			JanitorInterval: time.Minute,
		},
		Store: StoreConfig{
			Schema:         "public",
			MaxConns:       10,
			ConnectTimeout: 10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Timeout:         10 * time.Second,
			MaxConcurrent:   8,
			CacheTTL:        30 * time.Minute,
			CacheMaxEntries: 5000,
			JanitorInterval: time.Minute,
		},
		WebSearch: WebSearchConfig{
			Timeout:     10 * time.Second,
			MaxAttempts: 2,
		},
		Auth: AuthConfig{
			AllowAnonymous: true,
			JWT:            JWTConfig{SubjectClaim: "sub", Leeway: 30 * time.Second},
		},
		Scoring: healthscore.DefaultWeights(),
		Observe: observe.Config{
			ServiceName: "algateway",
			Tracing:     observe.TracingConfig{Exporter: "otlp", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads path, expands ${VAR} references strictly, layers the result
// over Default, resolves secret references and validates.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(ctx, data)
}

// Parse is Load for an in-memory document.
func Parse(ctx context.Context, data []byte) (*Config, error) {
	expanded, err := secret.ExpandEnvStrict(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	res, err := secret.Builtin().Resolver(c.Secrets)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	defer res.Close()

	err = res.ResolveFields(ctx,
		&c.Store.PrivilegedDSN,
		&c.Store.RestrictedDSN,
		&c.Embedding.APIKey,
		&c.WebSearch.APIKey,
		&c.Auth.JWT.Secret,
	)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return ErrNoListen
	}

	names := make([]string, 0, len(c.Cache.TTLs))
	for name := range c.Cache.TTLs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !tools.Known(name) {
			return fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}
		if c.Cache.TTLs[name] < 0 {
			return fmt.Errorf("%w: %s = %v", ErrNegativeTTL, name, c.Cache.TTLs[name])
		}
	}
	if c.Cache.MaxTTL < 0 {
		return fmt.Errorf("%w: max_ttl = %v", ErrNegativeTTL, c.Cache.MaxTTL)
	}

	if c.Embedding.CacheMaxEntries < 0 {
		return fmt.Errorf("%w: embedding.cache_max_entries = %d", ErrNegativeLimit, c.Embedding.CacheMaxEntries)
	}

	if !c.Auth.AllowAnonymous && c.Auth.JWT.Secret == "" && len(c.Auth.APIKeys) == 0 {
		return ErrNoAuthenticators
	}

	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	return nil
}

// Policy returns the cache policy. A disabled cache caches nothing.
func (c CacheConfig) Policy() cache.Policy {
	if !c.Enabled {
		return cache.NoCachePolicy()
	}
	p := tools.DefaultPolicy()
	p.MaxTTL = c.MaxTTL
	p.MaxEntries = c.MaxEntries
	for name, ttl := range c.TTLs {
		p = p.WithTTL(name, ttl)
	}
	return p
}

// Authenticator builds the request authenticator chain.
func (a AuthConfig) Authenticator() *auth.Chain {
	var auths []auth.Authenticator
	if a.JWT.Secret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:       []byte(a.JWT.Secret),
			Issuer:       a.JWT.Issuer,
			Audience:     a.JWT.Audience,
			SubjectClaim: a.JWT.SubjectClaim,
			Leeway:       a.JWT.Leeway,
		}))
	}
	if len(a.APIKeys) > 0 {
		auths = append(auths, auth.NewAPIKeyAuthenticator(a.APIKeys...))
	}
	return auth.NewChain(a.AllowAnonymous, auths...)
}
