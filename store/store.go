package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for store operations.
var (
	// ErrProcedureNotFound reports that a named remote procedure does not exist.
	// It is the only error that lets a procedure fallback step down.
	ErrProcedureNotFound = errors.New("store: procedure not found")

	// ErrNotConfigured reports that no connection was configured.
	ErrNotConfigured = errors.New("store: not configured")

	// ErrNotFound reports that a lookup matched no rows.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidIdentifier reports a table, column or procedure name that is
	// not a plain SQL identifier.
	ErrInvalidIdentifier = errors.New("store: invalid identifier")
)

// Row is a single result row keyed by column name.
type Row = map[string]any

// Rows is an ordered result set.
type Rows []Row

// Op is a filter comparison operator.
type Op string

// Filter operators.
const (
	OpEq    Op = "eq"
	OpILike Op = "ilike"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpIn    Op = "in"
)

// Filter is one column predicate.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq returns an equality filter.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// ILike returns a case-insensitive pattern filter. % matches any run of
// characters, _ matches one and \ escapes the next character.
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Op: OpILike, Value: pattern}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// EscapeLike quotes the pattern characters in s so it matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Gte returns a greater-or-equal filter.
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

// Lte returns a less-or-equal filter.
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }

// In returns a membership filter.
func In(column string, values ...any) Filter {
	return Filter{Column: column, Op: OpIn, Value: values}
}

// Query describes a single-table read.
//
// Filters are combined with AND. Or filters are combined with OR and the
// group is ANDed with Filters.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Or      []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the remote relational store contract.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: all methods honor cancellation and deadlines.
// - Errors: a missing procedure is reported as ErrProcedureNotFound so callers
// can distinguish it from every other failure.
type Store interface {
	// Call invokes a stored procedure with named arguments.
	Call(ctx context.Context, proc string, args map[string]any) (Rows, error)

	// Select runs a filtered read against one table.
	Select(ctx context.Context, q Query) (Rows, error)

	// Update sets values on rows matching every key in match.
	Update(ctx context.Context, table string, match, values map[string]any) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Decode converts rows into typed values through their JSON form.
func Decode[T any](rows Rows) ([]T, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("store: encode rows: %w", err)
	}
	out := make([]T, 0, len(rows))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("store: decode rows: %w", err)
	}
	return out, nil
}

// First returns the first row decoded as T, or ErrNotFound when rows is empty.
func First[T any](rows Rows) (T, error) {
	var zero T
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	decoded, err := Decode[T](rows[:1])
	if err != nil {
		return zero, err
	}
	return decoded[0], nil
}

// ValidIdentifier reports whether name is a plain lowercase SQL identifier.
func ValidIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func validateQuery(q Query) error {
	if !ValidIdentifier(q.Table) {
		return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, q.Table)
	}
	for _, c := range q.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c)
		}
	}
	for _, f := range append(append([]Filter(nil), q.Filters...), q.Or...) {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, f.Column)
		}
		switch f.Op {
		case OpEq, OpILike, OpGte, OpLte, OpIn:
		default:
			return fmt.Errorf("store: unknown operator %q", f.Op)
		}
	}
	if q.OrderBy != "" && !ValidIdentifier(q.OrderBy) {
		return fmt.Errorf("%w: order column %q", ErrInvalidIdentifier, q.OrderBy)
	}
	return nil
}
