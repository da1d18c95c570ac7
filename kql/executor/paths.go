package executor

import (
	"strings"

	"github.com/kestreldb/kestrel/kql/ast"
)

// resolvePath walks a dot-notation segment list against a row's nested
// structure. A missing intermediate segment yields no match rather than an
// error; condition evaluation is existence-tolerant.
func resolvePath(row map[string]interface{}, path []string) (interface{}, bool) {
	var current interface{} = row
	for _, segment := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setPath writes a value at a dot-notation path, creating intermediate maps
// as needed. An existing non-map intermediate is replaced.
func setPath(props map[string]interface{}, path []string, value interface{}) {
	current := props
	for _, segment := range path[:len(path)-1] {
		next, ok := current[segment].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[segment] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// matchCondition evaluates one condition against a materialized row.
func matchCondition(row map[string]interface{}, cond ast.Condition) bool {
	value, ok := resolvePath(row, cond.Path)
	if !ok {
		return false
	}

	switch cond.Operator {
	case ast.OpEq:
		return valuesEqual(value, cond.Value.Value())
	case ast.OpNeq:
		return !valuesEqual(value, cond.Value.Value())
	case ast.OpContains:
		s, sok := value.(string)
		sub, vok := cond.Value.Value().(string)
		return sok && vok && strings.Contains(s, sub)
	case ast.OpGt, ast.OpLt, ast.OpGte, ast.OpLte:
		return compareOrdered(value, cond.Value.Value(), cond.Operator)
	}
	return false
}

// matchAll reports whether the row satisfies every condition.
func matchAll(row map[string]interface{}, conds []ast.Condition) bool {
	for _, cond := range conds {
		if !matchCondition(row, cond) {
			return false
		}
	}
	return true
}

// valuesEqual compares a row value against a query literal. Numeric values
// compare by magnitude regardless of Go representation.
func valuesEqual(a, b interface{}) bool {
	if an, aok := toNumber(a); aok {
		bn, bok := toNumber(b)
		return bok && an == bn
	}
	return a == b
}

// compareOrdered applies an ordering operator. Numbers order numerically,
// strings lexicographically; mixed or unordered types never match.
func compareOrdered(value, operand interface{}, op ast.Operator) bool {
	if vn, vok := toNumber(value); vok {
		on, ook := toNumber(operand)
		if !ook {
			return false
		}
		return orderedHolds(op, compareFloats(vn, on))
	}

	vs, vok := value.(string)
	os, ook := operand.(string)
	if !vok || !ook {
		return false
	}
	return orderedHolds(op, strings.Compare(vs, os))
}

func orderedHolds(op ast.Operator, cmp int) bool {
	switch op {
	case ast.OpGt:
		return cmp > 0
	case ast.OpLt:
		return cmp < 0
	case ast.OpGte:
		return cmp >= 0
	case ast.OpLte:
		return cmp <= 0
	}
	return false
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// toNumber accepts the numeric shapes JSON decoding and Go literals produce.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
