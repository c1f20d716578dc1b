package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the store translates into sentinels.
const (
	codeUndefinedFunction = "42883"
)

// PostgresConfig holds connection settings for a pgx pool.
type PostgresConfig struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string

	// MaxConns is the maximum number of pooled connections.
	// Default: 10
	MaxConns int32

	// ConnectTimeout bounds establishing a connection.
	// Default: 10 seconds
	ConnectTimeout time.Duration

	// Schema qualifies table and procedure names. Default: public.
	Schema string
}

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgres opens a pool. An empty DSN returns ErrNotConfigured without I/O.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if !ValidIdentifier(cfg.Schema) {
		return nil, fmt.Errorf("%w: schema %q", ErrInvalidIdentifier, cfg.Schema)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	return &Postgres{pool: pool, schema: cfg.Schema}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool, schema string) *Postgres {
	if schema == "" {
		schema = "public"
	}
	return &Postgres{pool: pool, schema: schema}
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Call invokes proc with named arguments.
func (p *Postgres) Call(ctx context.Context, proc string, args map[string]any) (Rows, error) {
	sql, params, err := buildCall(p.schema, proc, args)
	if err != nil {
		return nil, err
	}
	rows, err := p.query(ctx, sql, params)
	if err != nil && missingProcedure(err, proc) {
		return nil, fmt.Errorf("%w: %w", ErrProcedureNotFound, err)
	}
	return rows, err
}

// Select runs q.
func (p *Postgres) Select(ctx context.Context, q Query) (Rows, error) {
	sql, params, err := buildSelect(p.schema, q)
	if err != nil {
		return nil, err
	}
	return p.query(ctx, sql, params)
}

// Update sets values on rows matching match.
func (p *Postgres) Update(ctx context.Context, table string, match, values map[string]any) error {
	sql, params, err := buildUpdate(p.schema, table, match, values)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, sql, params...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

func (p *Postgres) query(ctx context.Context, sql string, params []any) (Rows, error) {
	rows, err := p.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, mapError(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(err)
	}
	out := make(Rows, len(maps))
	for i, m := range maps {
		for k, v := range m {
			m[k] = normalizeValue(v)
		}
		out[i] = m
	}
	return out, nil
}

// normalizeValue converts driver types without a useful JSON form: uuid
// columns scan as [16]byte and numeric columns as pgtype.Numeric.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return v
	}
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("store: %w", err)
}

// missingProcedure reports whether err says proc itself is undefined. The
// same SQLSTATE raised inside a procedure body names another function or an
// operator and carries a Where context.
func missingProcedure(err error, proc string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUndefinedFunction || pgErr.Where != "" {
		return false
	}
	msg := pgErr.Message
	return strings.HasPrefix(msg, "function ") &&
		(strings.Contains(msg, " "+proc+"(") || strings.Contains(msg, "."+proc+"("))
}

func buildCall(schema, proc string, args map[string]any) (string, []any, error) {
	if !ValidIdentifier(proc) {
		return "", nil, fmt.Errorf("%w: procedure %q", ErrInvalidIdentifier, proc)
	}
	names := sortedKeys(args)
	parts := make([]string, len(names))
	params := make([]any, len(names))
	for i, name := range names {
		if !ValidIdentifier(name) {
			return "", nil, fmt.Errorf("%w: argument %q", ErrInvalidIdentifier, name)
		}
		parts[i] = fmt.Sprintf("%s => $%d", name, i+1)
		params[i] = args[name]
	}
	return fmt.Sprintf("SELECT * FROM %s.%s(%s)", schema, proc, strings.Join(parts, ", ")), params, nil
}

func buildSelect(schema string, q Query) (string, []any, error) {
	if err := validateQuery(q); err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s.%s", cols, schema, q.Table)

	var params []any
	var where []string
	for _, f := range q.Filters {
		where = append(where, predicate(f, &params))
	}
	if len(q.Or) > 0 {
		ors := make([]string, len(q.Or))
		for i, f := range q.Or {
			ors[i] = predicate(f, &params)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", q.OrderBy)
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		params = append(params, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(params))
	}
	return b.String(), params, nil
}

func predicate(f Filter, params *[]any) string {
	*params = append(*params, f.Value)
	n := len(*params)
	switch f.Op {
	case OpILike:
		return fmt.Sprintf("%s ILIKE $%d", f.Column, n)
	case OpGte:
		return fmt.Sprintf("%s >= $%d", f.Column, n)
	case OpLte:
		return fmt.Sprintf("%s <= $%d", f.Column, n)
	case OpIn:
		return fmt.Sprintf("%s = ANY($%d)", f.Column, n)
	default:
		return fmt.Sprintf("%s = $%d", f.Column, n)
	}
}

func buildUpdate(schema, table string, match, values map[string]any) (string, []any, error) {
	if !ValidIdentifier(table) {
		return "", nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, table)
	}
	if len(match) == 0 || len(values) == 0 {
		return "", nil, errors.New("store: update needs match and values")
	}

	var params []any
	set := make([]string, 0, len(values))
	for _, col := range sortedKeys(values) {
		if !ValidIdentifier(col) {
			return "", nil, fmt.Errorf("%w: column %q", ErrInvalidIdentifier, col)
		}
		params = append(params, values[col])
		set = append(set, fmt.Sprintf("%s = $%d", col, len(params)))
	}
	where := make([]string, 0, len(match))
	for _, col := range sortedKeys(match) {
		if !ValidIdentifier(col) {
			return "", nil, fmt.Errorf("%w: column %q", ErrInvalidIdentifier, col)
		}
		params = append(params, match[col])
		where = append(where, fmt.Sprintf("%s = $%d", col, len(params)))
	}
	return fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s", schema, table,
		strings.Join(set, ", "), strings.Join(where, " AND ")), params, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Store = (*Postgres)(nil)
