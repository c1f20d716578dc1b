package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/revline/algateway/cache"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/tools"
)

// Dispatcher routes tool calls through validation, caching and the failure
// boundary.
//
// Contract:
//   - Concurrency: Dispatch is safe for concurrent use.
//   - Errors: Dispatch never panics and never returns a Go error; failures
//     are reported in Result.Err.
type Dispatcher struct {
	registry     *tools.Registry
	cache        cache.Cache
	policy       cache.Policy
	singleflight bool
	observe      *observe.Middleware

	mw *cache.CacheMiddleware
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCache sets the tool result cache. By default a MemoryCache bounded by
// the policy's MaxEntries is used.
func WithCache(c cache.Cache) Option {
	return func(d *Dispatcher) {
		d.cache = c
	}
}

// WithPolicy replaces the TTL table. Default: tools.DefaultPolicy().
func WithPolicy(p cache.Policy) Option {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

// WithSingleflight coalesces concurrent misses for the same cache key.
func WithSingleflight() Option {
	return func(d *Dispatcher) {
		d.singleflight = true
	}
}

// WithMiddleware sets the telemetry middleware. Default: no-op tracing,
// metrics and logging.
func WithMiddleware(m *observe.Middleware) Option {
	return func(d *Dispatcher) {
		d.observe = m
	}
}

// New creates a Dispatcher over reg.
func New(reg *tools.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		policy:   tools.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cache == nil {
		d.cache = cache.NewMemoryCache(d.policy)
	}
	if d.observe == nil {
		d.observe = observe.NewMiddleware(nil, nil, nil)
	}

	var mwOpts []cache.MiddlewareOption
	if d.singleflight {
		mwOpts = append(mwOpts, cache.WithSingleflight())
	}
	d.mw = cache.NewCacheMiddleware(d.cache, nil, d.policy, mwOpts...)
	return d
}

// Registry returns the tool registry.
func (d *Dispatcher) Registry() *tools.Registry {
	return d.registry
}

// Tools lists the registered tool names in sorted order.
func (d *Dispatcher) Tools() []tools.Name {
	return d.registry.Names()
}

// Policy returns the caching policy.
func (d *Dispatcher) Policy() cache.Policy {
	return d.policy
}

// Dispatch runs the named tool. meta may be nil; when set, its ScopeKey
// partitions the cache and the remaining fields are filled in.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage, meta *Meta) Result {
	if meta == nil {
		meta = &Meta{}
	}
	start := time.Now()
	meta.Tool = name
	meta.CacheHit = false
	meta.CacheEligible = false
	defer func() { meta.Duration = time.Since(start) }()

	tool, ok := d.registry.Lookup(name)
	if !ok {
		d.observe.Logger().Warn(ctx, "unknown tool requested", observe.F("tool.name", name))
		return failed(d.registry.UnknownTool(name))
	}

	_, cacheable := d.policy.TTL(name)
	var result Result
	observed := d.observe.Wrap(func(ctx context.Context, tm observe.ToolMeta) observe.Execution {
		payload, lookup, err := d.run(ctx, tool, args, meta.ScopeKey)
		meta.CacheHit = lookup.Hit
		meta.CacheEligible = lookup.Eligible

		exec := observe.Execution{CacheHit: lookup.Hit, CacheEligible: lookup.Eligible}
		if err != nil {
			te := Classify(err)
			var pe *panicError
			if errors.As(err, &pe) {
				d.observe.Logger().Error(ctx, "tool panicked",
					observe.F("tool.name", tm.Name), observe.F("panic", fmt.Sprint(pe.value)))
			}
			result = failed(te)
			exec.Err = err
			exec.ErrKind = string(te.Kind)
			return exec
		}
		result = Result{Payload: payload}
		return exec
	})
	observed(ctx, observe.ToolMeta{Name: name, Category: tool.Category(), Cacheable: cacheable})
	return result
}

func (d *Dispatcher) run(ctx context.Context, tool tools.Tool, args json.RawMessage, scope string) ([]byte, cache.Lookup, error) {
	name := string(tool.Name())

	inv, err := prepare(tool, args)
	if err != nil {
		return nil, cache.Lookup{}, err
	}

	// The key is derived from the validated request, so equivalent raw
	// arguments share an entry.
	return d.mw.Execute(ctx, scope, name, inv.Request, func(ctx context.Context) ([]byte, error) {
		out, err := invoke(ctx, name, inv)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, &tools.Error{Kind: tools.KindUnexpected, Message: "The result of " + name + " could not be encoded."}
		}
		return data, nil
	})
}

func prepare(tool tools.Tool, args json.RawMessage) (inv tools.Invocation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{tool: string(tool.Name()), value: r}
		}
	}()
	return tool.Prepare(args)
}

func invoke(ctx context.Context, name string, inv tools.Invocation) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{tool: name, value: r}
		}
	}()
	return inv.Run(ctx)
}

// Invalidate drops cached results for tool, or for every tool when tool is
// empty, and returns how many entries were removed.
func (d *Dispatcher) Invalidate(ctx context.Context, tool string) (int, error) {
	if tool != "" {
		if _, ok := d.registry.Lookup(tool); !ok {
			return 0, d.registry.UnknownTool(tool)
		}
	}
	n := d.mw.Invalidate(ctx, tool)
	if n < 0 {
		return 0, ErrInvalidateUnsupported
	}
	d.observe.Logger().Info(ctx, "cache invalidated", observe.F("tool.name", tool), observe.F("entries", n))
	return n, nil
}

// Stats reports tool cache counters when the cache keeps them.
func (d *Dispatcher) Stats() (cache.Stats, bool) {
	s, ok := d.cache.(interface{ Stats() cache.Stats })
	if !ok {
		return cache.Stats{}, false
	}
	return s.Stats(), true
}

// Ping reports whether the dispatcher is ready. It is used by health checks.
func (d *Dispatcher) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.registry == nil || len(d.registry.Names()) == 0 {
		return ErrNoTools
	}
	return nil
}
