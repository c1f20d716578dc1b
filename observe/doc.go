// Package observe provides the gateway's telemetry: OpenTelemetry tracing
// and metrics, a JSON line logger with field redaction, and a Middleware
// that records every tool dispatch.
//
// Instruments:
//
//	al.tool.calls          counter   {tool.name}
//	al.tool.errors         counter   {tool.name, error.kind}
//	al.tool.duration_ms    histogram {tool.name}
//	al.cache.lookups       counter   {tool.name, result=hit|miss}
//	al.fallback.stepdowns  counter   {pattern, tier}
package observe
