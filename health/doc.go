// Package health reports the readiness of the gateway's collaborators.
//
// Each component (database access tiers, the embedding and web-search
// providers, the dispatcher and its result cache) is registered with an
// Aggregator as a Checker. Required components make the gateway unhealthy
// when they fail; optional ones only degrade it, because every tool that
// depends on them has a fallback.
//
//	agg := health.NewAggregator(2 * time.Second)
//	agg.Register("store.restricted", health.PingCheck(restricted, true))
//	agg.Register("websearch", health.BreakerCheck(web.BreakerState))
//	report := agg.CheckAll(ctx)
//
// The HTTP handlers expose the usual probe triple: /healthz for liveness,
// /readyz for readiness and /health for the per-component report.
package health
