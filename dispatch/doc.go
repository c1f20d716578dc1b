// Package dispatch routes a tool name and raw JSON arguments to the tool's
// handler and turns whatever happens into a Result.
//
// A dispatch looks the tool up in the registry, decodes and validates the
// arguments into the tool's typed request, and runs the handler behind the
// cache middleware when the tool has a TTL. Handler errors and panics never
// escape: they are classified into a tools.Error and returned as data.
//
// Every dispatch of a registered tool is traced, counted and logged through
// an observe.Middleware.
package dispatch
