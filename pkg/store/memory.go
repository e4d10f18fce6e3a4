package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Row is implemented by records held in a Memory store. Lookup reports the
// value of f and whether it is non-null.
type Row interface {
	Lookup(f Field) (interface{}, bool)
}

// Memory evaluates queries over an in-process slice. It backs the "memory"
// store driver and the tests; NULL handling follows Postgres.
type Memory[T Row] struct {
	mu   sync.RWMutex
	rows []T
}

func NewMemory[T Row](rows ...T) *Memory[T] {
	m := &Memory[T]{}
	m.Insert(rows...)
	return m
}

func (m *Memory[T]) Insert(rows ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
}

// Update replaces every row for which fn returns true with the returned row.
func (m *Memory[T]) Update(fn func(T) (T, bool)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i, r := range m.rows {
		if updated, ok := fn(r); ok {
			m.rows[i] = updated
			n++
		}
	}
	return n
}

func (m *Memory[T]) Find(ctx context.Context, q Query) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := m.filter(q.Where)

	if len(q.Order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i], matched[j], q.Order)
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []T{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *Memory[T]) Count(ctx context.Context, where []Cond) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(m.filter(where))), nil
}

func (m *Memory[T]) GroupCount(ctx context.Context, f Field, where []Cond, limit int) ([]Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, r := range m.filter(where) {
		v, ok := r.Lookup(f)
		if !ok {
			continue
		}
		counts[fmt.Sprint(v)]++
	}

	groups := make([]Group, 0, len(counts))
	for k, c := range counts {
		groups = append(groups, Group{Key: k, Count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	if limit > 0 && limit < len(groups) {
		groups = groups[:limit]
	}
	return groups, nil
}

func (m *Memory[T]) filter(where []Cond) []T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, 0, len(m.rows))
	for _, r := range m.rows {
		if matchAll(r, where) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(r Row, conds []Cond) bool {
	for _, c := range conds {
		if !Match(r, c) {
			return false
		}
	}
	return true
}

// Match evaluates a single predicate against r.
func Match(r Row, c Cond) bool {
	switch c.Op {
	case OpAnd:
		return matchAll(r, c.Children)
	case OpOr:
		for _, child := range c.Children {
			if Match(r, child) {
				return true
			}
		}
		return false
	}

	v, ok := r.Lookup(c.Field)
	switch c.Op {
	case OpIsNull:
		return !ok
	case OpNotNull:
		return ok
	case OpNeq:
		return !ok || compare(v, c.Value) != 0
	}
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return compare(v, c.Value) == 0
	case OpILike:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), strings.ToLower(fmt.Sprint(c.Value)))
	case OpGte:
		return compare(v, c.Value) >= 0
	case OpGt:
		return compare(v, c.Value) > 0
	case OpLt:
		return compare(v, c.Value) < 0
	case OpLte:
		return compare(v, c.Value) <= 0
	}
	return false
}

// less orders NULLs last when ascending and first when descending.
func less(a, b Row, orders []Order) bool {
	for _, o := range orders {
		av, aok := a.Lookup(o.Field)
		bv, bok := b.Lookup(o.Field)
		var cmp int
		switch {
		case !aok && !bok:
			cmp = 0
		case !aok:
			cmp = 1
		case !bok:
			cmp = -1
		default:
			cmp = compare(av, bv)
		}
		if cmp == 0 {
			continue
		}
		if o.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func compare(a, b interface{}) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
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
	}
	return 0, false
}
