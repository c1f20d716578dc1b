package fallback

import (
	"context"
	"errors"

	"github.com/revline/algateway/store"
)

// AccessTier reports which store credentials served a read.
type AccessTier string

const (
	AccessPrivileged AccessTier = "privileged"
	AccessRestricted AccessTier = "restricted"
)

// Access picks the privileged store when configured and the restricted one
// otherwise. It returns store.ErrNotConfigured when neither is available.
func Access(ctx context.Context, r *Reporter, name string, privileged, restricted store.Store) (store.Store, AccessTier, error) {
	if privileged != nil {
		return privileged, AccessPrivileged, nil
	}
	if restricted == nil {
		return nil, AccessRestricted, store.ErrNotConfigured
	}
	r.stepDown(ctx, PatternAccess, name, string(AccessRestricted), nil)
	return restricted, AccessRestricted, nil
}

// SourceTier reports whether data came from the remote store or the bundled copy.
type SourceTier string

const (
	SourceRemote SourceTier = "remote"
	SourceLocal  SourceTier = "local"
)

// Source prefers remote and answers from local when remote is nil, fails,
// or returns ErrNoData.
func Source[T any](ctx context.Context, r *Reporter, name string, remote Step[T], local func() (T, error)) (T, SourceTier, error) {
	if remote != nil {
		out, err := remote(ctx)
		if err == nil {
			return out, SourceRemote, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrNoData) {
			var zero T
			return zero, SourceRemote, err
		}
		r.stepDown(ctx, PatternSource, name, string(SourceLocal), err)
	}

	out, err := local()
	return out, SourceLocal, err
}
