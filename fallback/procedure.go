package fallback

import (
	"context"
	"errors"

	"github.com/revline/algateway/store"
)

// ProcedureTier reports which procedure answered.
type ProcedureTier string

const (
	ProcedurePreferred ProcedureTier = "preferred"
	ProcedureLegacy    ProcedureTier = "legacy"
)

// Procedure calls preferred and steps down to legacy only when preferred
// reports store.ErrProcedureNotFound. Any other error is returned as is and
// legacy is never invoked.
func Procedure[T any](ctx context.Context, r *Reporter, name string, preferred, legacy Step[T]) (T, ProcedureTier, error) {
	out, err := preferred(ctx)
	if err == nil {
		return out, ProcedurePreferred, nil
	}
	if !errors.Is(err, store.ErrProcedureNotFound) || legacy == nil {
		var zero T
		return zero, ProcedurePreferred, err
	}

	r.stepDown(ctx, PatternProcedure, name, string(ProcedureLegacy), err)
	out, err = legacy(ctx)
	if err != nil {
		var zero T
		return zero, ProcedureLegacy, err
	}
	return out, ProcedureLegacy, nil
}

// CallProcedure runs Procedure over two named procedures on st with the same arguments.
func CallProcedure(ctx context.Context, r *Reporter, st store.Store, preferred, legacy string, args map[string]any) (store.Rows, ProcedureTier, error) {
	return Procedure(ctx, r, preferred,
		func(ctx context.Context) (store.Rows, error) { return st.Call(ctx, preferred, args) },
		func(ctx context.Context) (store.Rows, error) { return st.Call(ctx, legacy, args) },
	)
}
