package health

import "errors"

var (
	// ErrCheckTimeout reports a check that did not finish within the
	// aggregator's per-check timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound reports a lookup for an unregistered component.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNotConfigured reports a component that was never wired.
	ErrNotConfigured = errors.New("health: component not configured")
)
