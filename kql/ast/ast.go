// Package ast defines the parsed representation of a KQL query.
//
// A query is one root operation (FIND, UPSERT, DELETE) decorated with
// optional modifier clauses. Nodes are explicit tagged unions so the
// executor can switch exhaustively; they are built per request by the
// parser and discarded after execution, never shared across requests.
package ast

import (
	"fmt"
	"sort"
	"strings"
)

// Operation is the root clause kind of a query.
type Operation string

const (
	OpFind   Operation = "FIND"
	OpUpsert Operation = "UPSERT"
	OpDelete Operation = "DELETE"
)

// ValueType classifies literal values as inferred by the lexer.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeAny     ValueType = "any"
)

// Literal is a typed scalar value carried through from the lexer.
type Literal struct {
	Type    ValueType
	String  string
	Number  float64
	Boolean bool
}

// Value returns the literal as a dynamically typed value for row matching.
func (l Literal) Value() interface{} {
	switch l.Type {
	case TypeNumber:
		return l.Number
	case TypeBoolean:
		return l.Boolean
	default:
		return l.String
	}
}

// Canonical returns a stable textual form used for query fingerprinting.
func (l Literal) Canonical() string {
	switch l.Type {
	case TypeNumber:
		return fmt.Sprintf("n:%g", l.Number)
	case TypeBoolean:
		return fmt.Sprintf("b:%t", l.Boolean)
	default:
		return "s:" + l.String
	}
}

// StringLiteral builds a string literal.
func StringLiteral(s string) Literal {
	return Literal{Type: TypeString, String: s}
}

// NumberLiteral builds a number literal.
func NumberLiteral(n float64) Literal {
	return Literal{Type: TypeNumber, Number: n}
}

// BooleanLiteral builds a boolean literal.
func BooleanLiteral(b bool) Literal {
	return Literal{Type: TypeBoolean, Boolean: b}
}

// Path is a dot-notation property path carried as a segment list, not a
// flattened string, so nested writes and lookups can target exact segments.
type Path []string

// String joins the segments with dots for display and fingerprinting.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Operator is a WHERE/FILTER comparison operator.
type Operator string

const (
	OpEq       Operator = "="
	OpNeq      Operator = "!="
	OpContains Operator = "CONTAINS"
	OpGt       Operator = ">"
	OpLt       Operator = "<"
	OpGte      Operator = ">="
	OpLte      Operator = "<="
)

// Condition is a single path-operator-literal comparison.
type Condition struct {
	Path     Path
	Operator Operator
	Value    Literal
}

// Canonical returns a stable textual form used for query fingerprinting.
func (c Condition) Canonical() string {
	return c.Path.String() + string(c.Operator) + c.Value.Canonical()
}

// AggregateFn names an aggregate function.
type AggregateFn string

const (
	AggCount    AggregateFn = "COUNT"
	AggSum      AggregateFn = "SUM"
	AggAvg      AggregateFn = "AVG"
	AggMin      AggregateFn = "MIN"
	AggMax      AggregateFn = "MAX"
	AggDistinct AggregateFn = "DISTINCT"
)

// AggregateCall is one fn(path) or fn(*) term of an AGGREGATE clause.
type AggregateCall struct {
	Fn       AggregateFn
	Path     Path // empty when Wildcard
	Wildcard bool
}

// Canonical returns a stable textual form used for query fingerprinting.
func (a AggregateCall) Canonical() string {
	if a.Wildcard {
		return string(a.Fn) + "(*)"
	}
	return string(a.Fn) + "(" + a.Path.String() + ")"
}

// ResultName is the column name the executor assigns to this call's result.
func (a AggregateCall) ResultName() string {
	name := strings.ToLower(string(a.Fn))
	if a.Wildcard || len(a.Path) == 0 {
		return name
	}
	return name + "_" + strings.Join(a.Path, "_")
}

// Query is the root AST node: one operation plus optional modifiers.
// Nil modifier fields mean the clause was absent.
type Query struct {
	Operation Operation
	Target    string // label, or "*" for any
	Object    map[string]Literal // UPSERT object literal, keyed by raw (possibly dotted) key

	Where     []Condition
	Filter    []Condition
	GroupBy   []Path
	Aggregate []AggregateCall
	Limit     *int
	Cursor    *string
}

// IsWildcard reports whether the query targets all labels.
func (q *Query) IsWildcard() bool {
	return q.Target == "*"
}

// Shape returns the canonical structural form of the query used to derive
// pagination fingerprints. LIMIT and CURSOR are deliberately excluded so a
// continuation token survives page-size changes but nothing else.
func (q *Query) Shape() string {
	var b strings.Builder
	b.WriteString(string(q.Operation))
	b.WriteByte('|')
	b.WriteString(q.Target)

	writeConds := func(tag string, conds []Condition) {
		if len(conds) == 0 {
			return
		}
		b.WriteByte('|')
		b.WriteString(tag)
		parts := make([]string, len(conds))
		for i, c := range conds {
			parts[i] = c.Canonical()
		}
		b.WriteString(strings.Join(parts, "&"))
	}
	writeConds("W:", q.Where)
	writeConds("F:", q.Filter)

	if len(q.GroupBy) > 0 {
		b.WriteString("|G:")
		parts := make([]string, len(q.GroupBy))
		for i, p := range q.GroupBy {
			parts[i] = p.String()
		}
		b.WriteString(strings.Join(parts, ","))
	}

	if len(q.Aggregate) > 0 {
		b.WriteString("|A:")
		parts := make([]string, len(q.Aggregate))
		for i, a := range q.Aggregate {
			parts[i] = a.Canonical()
		}
		b.WriteString(strings.Join(parts, ","))
	}

	if q.Operation == OpUpsert && len(q.Object) > 0 {
		b.WriteString("|O:")
		keys := make([]string, 0, len(q.Object))
		for k := range q.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(strings.Join(keys, ","))
	}

	return b.String()
}
