package health

import (
	"context"
	"fmt"

	"github.com/revline/algateway/cache"
	"github.com/revline/algateway/resilience"
)

// Pinger is a component that can be probed for reachability, such as a
// database store or the dispatcher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p. A failure of a required component is unhealthy; of an
// optional one, degraded. A nil p reports the component as not configured.
func PingCheck(p Pinger, required bool) Checker {
	fail := Degraded
	if required {
		fail = Unhealthy
	}
	return CheckFunc(func(ctx context.Context) Result {
		if p == nil {
			return fail("not configured", ErrNotConfigured)
		}
		if err := p.Ping(ctx); err != nil {
			return fail("ping failed", err)
		}
		return Healthy("reachable")
	})
}

// BreakerCheck reports a provider guarded by a circuit breaker. An open or
// half-open circuit degrades the gateway: dependent tools fall back rather
// than fail. A nil state func means the provider is not configured.
func BreakerCheck(state func() resilience.State) Checker {
	return CheckFunc(func(context.Context) Result {
		if state == nil {
			return Degraded("not configured", ErrNotConfigured)
		}
		s := state()
		details := map[string]any{"circuit": s.String()}
		switch s {
		case resilience.StateClosed:
			return Healthy("circuit closed").WithDetails(details)
		case resilience.StateHalfOpen:
			return Degraded("circuit half-open", nil).WithDetails(details)
		default:
			return Degraded("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
		}
	})
}

// CacheCheck reports result-cache occupancy. A cache at capacity is evicting
// live entries and is reported degraded. stats returning false means the
// cache keeps no counters, which is healthy.
func CacheCheck(stats func() (cache.Stats, bool), maxEntries int) Checker {
	return CheckFunc(func(context.Context) Result {
		if stats == nil {
			return Healthy("no cache statistics")
		}
		s, ok := stats()
		if !ok {
			return Healthy("no cache statistics")
		}
		details := map[string]any{
			"entries":   s.Entries,
			"hits":      s.Hits,
			"misses":    s.Misses,
			"evictions": s.Evictions,
			"hit_rate":  s.HitRate(),
		}
		if maxEntries > 0 && s.Entries >= maxEntries {
			return Degraded(fmt.Sprintf("cache full (%d entries)", s.Entries), nil).WithDetails(details)
		}
		return Healthy(fmt.Sprintf("%d entries", s.Entries)).WithDetails(details)
	})
}
