package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ProcFunc implements a stored procedure for Memory.
type ProcFunc func(ctx context.Context, args map[string]any) (Rows, error)

// Memory is an in-process Store for tests and offline use.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]Rows
	procs  map[string]ProcFunc
	calls  map[string]int
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]Rows),
		procs:  make(map[string]ProcFunc),
		calls:  make(map[string]int),
	}
}

// Insert appends rows to table.
func (m *Memory) Insert(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], cloneRow(r))
	}
}

// Register installs a procedure under name.
func (m *Memory) Register(name string, fn ProcFunc) {
	m.mu.Lock()
	m.procs[name] = fn
	m.mu.Unlock()
}

// Calls returns how many times proc was invoked, including missing procedures.
func (m *Memory) Calls(proc string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[proc]
}

// Call invokes a registered procedure.
func (m *Memory) Call(ctx context.Context, proc string, args map[string]any) (Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls[proc]++
	fn, ok := m.procs[proc]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProcedureNotFound, proc)
	}
	return fn(ctx, args)
}

// Select evaluates q against the stored rows.
func (m *Memory) Select(ctx context.Context, q Query) (Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out Rows
	for _, r := range m.tables[q.Table] {
		if matchAll(r, q.Filters) && matchAny(r, q.Or) {
			out = append(out, cloneRow(r))
		}
	}
	m.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i, r := range out {
		out[i] = project(r, q.Columns)
	}
	return out, nil
}

// Update sets values on every row matching match.
func (m *Memory) Update(ctx context.Context, table string, match, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := 0
	for _, r := range m.tables[table] {
		matched := true
		for col, want := range match {
			if compare(r[col], want) != 0 {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		for col, v := range values {
			r[col] = v
		}
		updated++
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func matchAll(r Row, filters []Filter) bool {
	for _, f := range filters {
		if !matches(r, f) {
			return false
		}
	}
	return true
}

func matchAny(r Row, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if matches(r, f) {
			return true
		}
	}
	return false
}

func matches(r Row, f Filter) bool {
	v, ok := r[f.Column]
	if !ok || v == nil {
		return false
	}
	switch f.Op {
	case OpEq:
		return compare(v, f.Value) == 0
	case OpGte:
		return compare(v, f.Value) >= 0
	case OpLte:
		return compare(v, f.Value) <= 0
	case OpILike:
		pattern, _ := f.Value.(string)
		return likeMatch(strings.ToLower(fmt.Sprint(v)), strings.ToLower(pattern))
	case OpIn:
		values, _ := f.Value.([]any)
		for _, candidate := range values {
			if compare(v, candidate) == 0 {
				return true
			}
		}
	}
	return false
}

// likeMatch implements SQL LIKE: % matches any run, _ one character and
// a backslash makes the next character literal.
func likeMatch(s, pattern string) bool {
	type token struct {
		r    rune
		kind byte // 'l' for a literal rune, or '%' / '_'
	}
	var toks []token
	p := []rune(pattern)
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == '\\' && i+1 < len(p):
			i++
			toks = append(toks, token{r: p[i], kind: 'l'})
		case p[i] == '%' || p[i] == '_':
			toks = append(toks, token{kind: byte(p[i])})
		default:
			toks = append(toks, token{r: p[i], kind: 'l'})
		}
	}

	in := []rune(s)
	ti, si := 0, 0
	star, resume := -1, 0
	for si < len(in) {
		switch {
		case ti < len(toks) && (toks[ti].kind == '_' || toks[ti].kind == 'l' && toks[ti].r == in[si]):
			ti++
			si++
		case ti < len(toks) && toks[ti].kind == '%':
			star, resume = ti, si
			ti++
		case star >= 0:
			resume++
			ti, si = star+1, resume
		default:
			return false
		}
	}
	for ti < len(toks) && toks[ti].kind == '%' {
		ti++
	}
	return ti == len(toks)
}

// compare orders numbers numerically, times chronologically and everything
// else by its string form.
func compare(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func project(r Row, columns []string) Row {
	if len(columns) == 0 {
		return cloneRow(r)
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

var _ Store = (*Memory)(nil)
