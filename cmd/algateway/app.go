package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/revline/algateway/cache"
	"github.com/revline/algateway/config"
	"github.com/revline/algateway/dispatch"
	"github.com/revline/algateway/embedding"
	"github.com/revline/algateway/health"
	"github.com/revline/algateway/healthscore"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/resilience"
	"github.com/revline/algateway/store"
	"github.com/revline/algateway/tools"
	"github.com/revline/algateway/websearch"
)

// app is the assembled gateway.
type app struct {
	cfg        *config.Config
	obs        observe.Observer
	registry   *prometheus.Registry
	cache      *cache.MemoryCache
	embedder   *embedding.Client
	dispatcher *dispatch.Dispatcher
	health     *health.Aggregator
	logger     observe.Logger

	closers []func()
}

// buildApp wires the stores, providers, registry and dispatcher described
// by cfg. Missing credentials leave the matching collaborator unset; the
// tools that need it then report config_missing.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ocfg := cfg.Observe
	ocfg.Version = version
	ocfg.Registerer = a.registry
	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	a.obs = obs
	a.logger = obs.Logger()
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	deps := tools.Deps{
		Logger:  a.logger,
		Metrics: mw.Metrics(),
		Health:  healthscore.New(healthscore.WithWeights(cfg.Scoring)),
	}

	privileged, err := a.openStore(ctx, cfg.Store.PrivilegedDSN)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("privileged store: %w", err)
	}
	restricted, err := a.openStore(ctx, cfg.Store.RestrictedDSN)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("restricted store: %w", err)
	}
	if privileged != nil {
		deps.Privileged = privileged
	}
	if restricted != nil {
		deps.Restricted = restricted
	}

	var provider embedding.Provider
	embedBreaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          "embedding",
		IsFailure:     embedding.IsProviderFailure,
		OnStateChange: a.logBreaker,
	})
	op, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:        cfg.Embedding.APIKey,
		BaseURL:       cfg.Embedding.BaseURL,
		Model:         cfg.Embedding.Model,
		Timeout:       cfg.Embedding.Timeout,
		MaxConcurrent: cfg.Embedding.MaxConcurrent,
		Breaker:       embedBreaker,
	})
	switch {
	case err == nil:
		provider = op
	case errors.Is(err, embedding.ErrNotConfigured):
		embedBreaker = nil
		a.logger.Warn(ctx, "embedding provider not configured; semantic search disabled")
	default:
		a.Close(ctx)
		return nil, fmt.Errorf("embedding: %w", err)
	}
	a.embedder = embedding.NewClient(provider,
		embedding.WithTTL(cfg.Embedding.CacheTTL),
		embedding.WithMaxEntries(cfg.Embedding.CacheMaxEntries),
	)
	deps.Embedder = a.embedder

	var web *websearch.Client
	web, err = websearch.New(websearch.Config{
		Endpoint:      cfg.WebSearch.Endpoint,
		APIKey:        cfg.WebSearch.APIKey,
		Timeout:       cfg.WebSearch.Timeout,
		RatePerSecond: cfg.WebSearch.RatePerSecond,
		MaxAttempts:   cfg.WebSearch.MaxAttempts,
	})
	switch {
	case err == nil:
		deps.Web = web
	case errors.Is(err, websearch.ErrNotConfigured):
		web = nil
		a.logger.Warn(ctx, "web search not configured; search_web will report config_missing")
	default:
		a.Close(ctx)
		return nil, fmt.Errorf("websearch: %w", err)
	}

	policy := cfg.Cache.Policy()
	a.cache = cache.NewMemoryCache(policy)
	opts := []dispatch.Option{
		dispatch.WithPolicy(policy),
		dispatch.WithCache(a.cache),
		dispatch.WithMiddleware(mw),
	}
	if cfg.Cache.Singleflight {
		opts = append(opts, dispatch.WithSingleflight())
	}
	a.dispatcher = dispatch.New(tools.New(deps), opts...)

	a.health = health.NewAggregator(cfg.Server.HealthTimeout, health.WithLogger(a.logger))
	switch {
	case privileged == nil && restricted == nil:
		a.health.Register("store", health.PingCheck(nil, false))
	default:
		if privileged != nil {
			a.health.Register("store.privileged", health.PingCheck(privileged, true))
		}
		if restricted != nil {
			a.health.Register("store.restricted", health.PingCheck(restricted, true))
		}
	}
	a.health.Register("dispatcher", health.PingCheck(a.dispatcher, true))
	a.health.Register("cache", health.CacheCheck(a.dispatcher.Stats, policy.MaxEntries))
	a.health.Register("embedding", health.BreakerCheck(breakerState(embedBreaker)))
	if web != nil {
		a.health.Register("websearch", health.BreakerCheck(web.BreakerState))
	} else {
		a.health.Register("websearch", health.BreakerCheck(nil))
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, dsn string) (*store.Postgres, error) {
	if dsn == "" {
		return nil, nil
	}
	pg, err := store.NewPostgres(ctx, store.PostgresConfig{
		DSN:            dsn,
		MaxConns:       a.cfg.Store.MaxConns,
		ConnectTimeout: a.cfg.Store.ConnectTimeout,
		Schema:         a.cfg.Store.Schema,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

func (a *app) logBreaker(name string, from, to resilience.State) {
	a.logger.Warn(context.Background(), "circuit breaker state changed",
		observe.F("provider", name),
		observe.F("from", from.String()),
		observe.F("to", to.String()))
}

// Close releases pools and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil && a.logger != nil {
			a.logger.Error(ctx, "telemetry shutdown failed", observe.F("error", err.Error()))
		}
	}
}

func breakerState(cb *resilience.CircuitBreaker) func() resilience.State {
	if cb == nil {
		return nil
	}
	return cb.State
}
