package graph

import (
	"fmt"
	"strings"
)

// queryBuilder accumulates SQL WHERE clauses and parameters for concept
// queries. Pushdown conditions compile to column comparisons for core
// fields and json_extract expressions for nested property paths.
type queryBuilder struct {
	whereClauses []string
	args         []interface{}
}

// addClause appends a WHERE clause with its arguments
func (qb *queryBuilder) addClause(clause string, args ...interface{}) {
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.args = append(qb.args, args...)
}

// build returns the WHERE clauses joined with AND, or "1=1" when empty.
func (qb *queryBuilder) build() string {
	if len(qb.whereClauses) == 0 {
		return "1=1"
	}
	return strings.Join(qb.whereClauses, " AND ")
}

// buildLabelFilter restricts to one label unless the wildcard is given.
func (qb *queryBuilder) buildLabelFilter(label string) {
	if label == "" || label == "*" {
		return
	}
	qb.addClause("label = ?", label)
}

// buildConditionFilters compiles each pushdown condition.
func (qb *queryBuilder) buildConditionFilters(filter Filter) error {
	for _, cond := range filter.Conditions {
		if err := qb.buildCondition(cond); err != nil {
			return err
		}
	}
	return nil
}

// buildCondition compiles one condition. Core fields hit their columns;
// everything else goes through json_extract on the properties blob, with a
// REAL cast for numeric comparisons so SQLite compares numerically.
func (qb *queryBuilder) buildCondition(cond Condition) error {
	expr, isColumn := columnExpr(cond.Path)

	switch cond.Op {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte:
		op := string(cond.Op)
		if cond.Op == OpNeq {
			op = "<>"
		}
		if _, numeric := cond.Value.(float64); numeric && !isColumn {
			expr = fmt.Sprintf("CAST(%s AS REAL)", expr)
		}
		qb.addClause(fmt.Sprintf("%s %s ?", expr, op), bindValue(cond.Value))

	case OpContains:
		s, ok := cond.Value.(string)
		if !ok {
			return fmt.Errorf("CONTAINS requires a string value, got %T", cond.Value)
		}
		qb.addClause(expr+" LIKE ? ESCAPE '\\'", "%"+escapeLikePattern(s)+"%")

	default:
		return fmt.Errorf("unsupported pushdown operator %q", cond.Op)
	}
	return nil
}

// columnExpr maps a path to its SQL expression. Returns whether the path
// resolved to a plain column.
func columnExpr(path []string) (string, bool) {
	if len(path) == 1 {
		switch path[0] {
		case KeyName:
			return "name", true
		case KeyType:
			return "label", true
		case KeyID:
			return "id", true
		case KeyCreated:
			return "created_at", true
		case KeyUpdated:
			return "updated_at", true
		}
	}
	return fmt.Sprintf("json_extract(properties, '%s')", jsonPath(path)), false
}

// jsonPath renders a segment list as a SQLite JSON path. Segments are
// quoted so keys with unusual characters cannot break out of the path.
func jsonPath(path []string) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range path {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(seg, `"`, ``))
		b.WriteString(`"`)
	}
	return b.String()
}

// bindValue converts Go values to their SQLite parameter form.
func bindValue(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		// json_extract yields 0/1 for JSON booleans
		if b {
			return 1
		}
		return 0
	}
	return v
}

// escapeLikePattern escapes special characters in LIKE patterns for SQL ESCAPE clause
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
