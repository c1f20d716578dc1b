package tools

import (
	"errors"
	"fmt"
)

// Kind classifies a tool failure.
type Kind string

// Failure kinds.
const (
	KindConfigMissing Kind = "config_missing"
	KindBadInput      Kind = "bad_input"
	KindNotFound      Kind = "not_found"
	KindUpstream      Kind = "upstream"
	KindUnexpected    Kind = "unexpected"
	KindUnknownTool   Kind = "unknown_tool"
)

// Error is a failure returned to the agent as data. Its JSON form is the
// failure payload of a dispatch result.
type Error struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// BadInput returns a bad_input error.
func BadInput(format string, args ...any) *Error {
	return &Error{Kind: KindBadInput, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a not_found error with an optional suggestion.
func NotFound(message, suggestion string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Suggestion: suggestion}
}

// ConfigMissing returns a config_missing error with an optional suggestion.
func ConfigMissing(message, suggestion string) *Error {
	return &Error{Kind: KindConfigMissing, Message: message, Suggestion: suggestion}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

func missing(field string) *Error {
	return BadInput("%s is required", field)
}

// checkLimit accepts 0, meaning the tool's default, up to max.
func checkLimit(n, max int) error {
	if n < 0 || n > max {
		return BadInput("limit must be between 1 and %d, or omitted for the default", max)
	}
	return nil
}
