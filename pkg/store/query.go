// Package store defines the query primitives the formulari services compose
// and that every record store backend must evaluate identically.
package store

import (
	"context"
	"strings"
)

// Field names a top-level column, or a key path inside a JSON column when
// Path is non-empty. JSON path values are always compared as text.
type Field struct {
	Column string
	Path   []string
}

func Col(column string) Field {
	return Field{Column: column}
}

func JSONPath(column string, path ...string) Field {
	return Field{Column: column, Path: path}
}

func (f Field) IsJSON() bool { return len(f.Path) > 0 }

func (f Field) String() string {
	if !f.IsJSON() {
		return f.Column
	}
	return f.Column + "->" + strings.Join(f.Path, "->")
}

type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
	OpILike   Op = "ilike"
	OpGte     Op = "gte"
	OpGt      Op = "gt"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpOr      Op = "or"
	OpAnd     Op = "and"
)

// Cond is one predicate. Leaf predicates use Field and Value; OpOr and OpAnd
// combine Children.
type Cond struct {
	Op       Op
	Field    Field
	Value    interface{}
	Children []Cond
}

func Eq(f Field, v interface{}) Cond { return Cond{Op: OpEq, Field: f, Value: v} }

// Neq is null-safe: a missing value is different from any value.
func Neq(f Field, v interface{}) Cond { return Cond{Op: OpNeq, Field: f, Value: v} }

func IsNull(f Field) Cond  { return Cond{Op: OpIsNull, Field: f} }
func NotNull(f Field) Cond { return Cond{Op: OpNotNull, Field: f} }

// ILike matches values containing substr, ignoring case. substr is literal:
// wildcard characters in it carry no special meaning.
func ILike(f Field, substr string) Cond { return Cond{Op: OpILike, Field: f, Value: substr} }

func Gte(f Field, v interface{}) Cond { return Cond{Op: OpGte, Field: f, Value: v} }
func Gt(f Field, v interface{}) Cond  { return Cond{Op: OpGt, Field: f, Value: v} }
func Lt(f Field, v interface{}) Cond  { return Cond{Op: OpLt, Field: f, Value: v} }
func Lte(f Field, v interface{}) Cond { return Cond{Op: OpLte, Field: f, Value: v} }

func Or(conds ...Cond) Cond  { return Cond{Op: OpOr, Children: conds} }
func And(conds ...Cond) Cond { return Cond{Op: OpAnd, Children: conds} }

type Order struct {
	Field Field
	Desc  bool
}

// Query is a filtered, ordered window. A zero Limit means no limit.
type Query struct {
	Where  []Cond
	Order  []Order
	Offset int
	Limit  int
}

type Group struct {
	Key   string `json:"entity"`
	Count int64  `json:"count"`
}

// Store is the record store adapter contract.
type Store[T any] interface {
	Find(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, where []Cond) (int64, error)
	// GroupCount counts rows per distinct non-null value of f, most frequent
	// first, ties broken by key.
	GroupCount(ctx context.Context, f Field, where []Cond, limit int) ([]Group, error)
}

// EscapeLike escapes LIKE wildcards so s matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
