package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/revline/algateway/catalog"
	"github.com/revline/algateway/embedding"
	"github.com/revline/algateway/resilience"
	"github.com/revline/algateway/store"
	"github.com/revline/algateway/tools"
	"github.com/revline/algateway/websearch"
)

var (
	// ErrInvalidateUnsupported is returned by Invalidate when the configured
	// cache cannot enumerate its keys.
	ErrInvalidateUnsupported = errors.New("dispatch: cache does not support invalidation")

	// ErrNoTools is returned by Ping when the registry is empty.
	ErrNoTools = errors.New("dispatch: no tools registered")
)

// panicError carries a recovered panic out of a handler.
type panicError struct {
	tool  string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("dispatch: %s panicked: %v", e.tool, e.value)
}

// Classify maps err onto the failure taxonomy. Recovered panics are
// unexpected; upstream is the default for anything unrecognized.
func Classify(err error) *tools.Error {
	if err == nil {
		return nil
	}
	if te, ok := tools.AsError(err); ok {
		return te
	}

	var pe *panicError
	switch {
	case errors.As(err, &pe):
		return &tools.Error{
			Kind:    tools.KindUnexpected,
			Message: "An unexpected error occurred while running " + pe.tool + ".",
		}

	case errors.Is(err, store.ErrNotConfigured):
		return tools.ConfigMissing("The car database is not configured.", "")
	case errors.Is(err, embedding.ErrNotConfigured):
		return tools.ConfigMissing("Semantic search is not configured.", "")
	case errors.Is(err, websearch.ErrNotConfigured):
		return tools.ConfigMissing("Web search is not configured.", "")

	case errors.Is(err, store.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return tools.NotFound("No matching record was found.", "")

	case errors.Is(err, embedding.ErrEmptyInput),
		errors.Is(err, websearch.ErrEmptyQuery),
		errors.Is(err, store.ErrInvalidIdentifier):
		return &tools.Error{Kind: tools.KindBadInput, Message: err.Error()}

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, resilience.ErrTimeout):
		return upstream("The request timed out. Try again shortly.")
	case errors.Is(err, resilience.ErrCircuitOpen):
		return upstream("The service is temporarily unavailable. Try again shortly.")
	case errors.Is(err, context.Canceled):
		return upstream("The request was cancelled.")

	default:
		return upstream(err.Error())
	}
}

func upstream(msg string) *tools.Error {
	return &tools.Error{Kind: tools.KindUpstream, Message: msg}
}
