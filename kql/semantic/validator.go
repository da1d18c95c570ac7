// Package semantic validates type compatibility of a parsed query and
// scores its compliance.
//
// The validator checks every WHERE/FILTER condition against the
// operator/operand type-compatibility matrix and every AGGREGATE call
// against its argument rules, then summarizes the outcome as a normalized
// compliance score in [0,1]. In strict mode any failed check aborts with a
// *TypeValidationError; in non-strict mode failures are reported in the
// check list and the caller decides.
package semantic

import (
	"fmt"

	"github.com/kestreldb/kestrel/kql/ast"
)

// CheckKind categorizes a semantic check.
type CheckKind string

const (
	CheckOperator  CheckKind = "operator"  // operator/operand type compatibility
	CheckAggregate CheckKind = "aggregate" // aggregate function argument compatibility
	CheckGrouping  CheckKind = "grouping"  // GROUP BY path usable as a partition key
)

// Check records one semantic check performed on a query.
type Check struct {
	Kind        CheckKind `json:"kind"`
	Description string    `json:"description"`
	Passed      bool      `json:"passed"`
	Detail      string    `json:"detail,omitempty"`
}

// Compliance summarizes how many semantic checks passed.
// A query with zero checks performed is vacuously compliant (score 1).
type Compliance struct {
	Score  float64 `json:"score"` // passed/total, in [0,1]
	Passed int     `json:"passed"`
	Total  int     `json:"total"`
}

// Report is the full outcome of semantic validation.
type Report struct {
	Success    bool       `json:"success"`
	Checks     []Check    `json:"checks"`
	Compliance Compliance `json:"compliance"`
}

// TypeValidationError aborts strict-mode validation on the first failure.
// It carries every check performed so callers can render the full picture.
type TypeValidationError struct {
	Checks []Check
	First  Check
}

func (e *TypeValidationError) Error() string {
	return fmt.Sprintf("semantic validation failed: %s (%s)", e.First.Description, e.First.Detail)
}

// IsAggregateFailure reports whether the first failing check concerns
// aggregate argument compatibility rather than operator typing.
func (e *TypeValidationError) IsAggregateFailure() bool {
	return e.First.Kind == CheckAggregate
}

// Config controls validation behavior. Sourced from config keys
// kql.string_ordering and kql.strict.
type Config struct {
	// StringOrdering enables > < >= <= on string operands. Off by default:
	// the documented dialect restricts ordering to numbers.
	StringOrdering bool
	// Strict makes any failed check return a *TypeValidationError instead
	// of a failure-bearing report.
	Strict bool
}

// Validator performs semantic validation of parsed queries.
type Validator struct {
	cfg Config
}

// NewValidator creates a validator with the given config.
func NewValidator(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate walks the query and performs every applicable semantic check.
func (v *Validator) Validate(q *ast.Query) (*Report, error) {
	var checks []Check

	for _, cond := range q.Where {
		checks = append(checks, v.checkCondition("WHERE", cond))
	}
	for _, cond := range q.Filter {
		checks = append(checks, v.checkCondition("FILTER", cond))
	}
	for _, path := range q.GroupBy {
		checks = append(checks, Check{
			Kind:        CheckGrouping,
			Description: fmt.Sprintf("GROUP BY %s", path),
			Passed:      true,
		})
	}

	numericPaths := numericEvidence(q)
	for _, call := range q.Aggregate {
		checks = append(checks, v.checkAggregate(call, numericPaths))
	}

	report := buildReport(checks)
	if v.cfg.Strict && !report.Success {
		return report, &TypeValidationError{Checks: checks, First: firstFailure(checks)}
	}
	return report, nil
}

// checkCondition applies the operator/operand compatibility matrix.
func (v *Validator) checkCondition(clause string, cond ast.Condition) Check {
	check := Check{
		Kind:        CheckOperator,
		Description: fmt.Sprintf("%s %s %s %s", clause, cond.Path, cond.Operator, cond.Value.Type),
	}

	switch cond.Operator {
	case ast.OpEq, ast.OpNeq:
		// Equality is valid for string, number and boolean operands.
		check.Passed = true

	case ast.OpGt, ast.OpLt, ast.OpGte, ast.OpLte:
		switch cond.Value.Type {
		case ast.TypeNumber:
			check.Passed = true
		case ast.TypeString:
			if v.cfg.StringOrdering {
				check.Passed = true
			} else {
				check.Detail = "string ordering is disabled; enable kql.string_ordering to compare strings"
			}
		default:
			check.Detail = fmt.Sprintf("ordering operator %s is not valid for %s operands", cond.Operator, cond.Value.Type)
		}

	case ast.OpContains:
		if cond.Value.Type == ast.TypeString {
			check.Passed = true
		} else {
			check.Detail = fmt.Sprintf("CONTAINS requires a string operand, got %s", cond.Value.Type)
		}

	default:
		check.Detail = fmt.Sprintf("unknown operator %s", cond.Operator)
	}

	return check
}

// checkAggregate applies aggregate argument rules. COUNT and DISTINCT accept
// any argument including *; SUM/AVG/MIN/MAX need a numeric path. Rows are
// dynamically typed, so a path with no type evidence in the query passes as
// untyped; a path with contradicting string evidence fails.
func (v *Validator) checkAggregate(call ast.AggregateCall, numericPaths map[string]bool) Check {
	check := Check{
		Kind:        CheckAggregate,
		Description: fmt.Sprintf("AGGREGATE %s", call.Canonical()),
	}

	switch call.Fn {
	case ast.AggCount, ast.AggDistinct:
		check.Passed = true
		return check
	}

	if call.Wildcard {
		check.Detail = fmt.Sprintf("%s requires a property path, not *", call.Fn)
		return check
	}

	key := call.Path.String()
	if isNumeric, known := numericPaths[key]; known && !isNumeric {
		check.Detail = fmt.Sprintf("%s requires a numeric path, but %s is compared as a string elsewhere in the query", call.Fn, key)
		return check
	}

	check.Passed = true
	return check
}

// numericEvidence gathers per-path type evidence from the query's own
// conditions: a path compared against a numeric literal is numeric, one
// compared against a string literal is not. The confidence field is always
// numeric per the Proposition schema.
func numericEvidence(q *ast.Query) map[string]bool {
	evidence := make(map[string]bool)
	record := func(cond ast.Condition) {
		key := cond.Path.String()
		switch cond.Value.Type {
		case ast.TypeNumber:
			evidence[key] = true
		case ast.TypeString:
			// Numeric evidence wins over string evidence when both occur.
			if _, ok := evidence[key]; !ok {
				evidence[key] = false
			}
		}
	}
	for _, cond := range q.Where {
		record(cond)
	}
	for _, cond := range q.Filter {
		record(cond)
	}
	evidence["confidence"] = true
	return evidence
}

func buildReport(checks []Check) *Report {
	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}

	score := 1.0 // zero checks performed is vacuously compliant
	if len(checks) > 0 {
		score = float64(passed) / float64(len(checks))
	}

	return &Report{
		Success: passed == len(checks),
		Checks:  checks,
		Compliance: Compliance{
			Score:  score,
			Passed: passed,
			Total:  len(checks),
		},
	}
}

func firstFailure(checks []Check) Check {
	for _, c := range checks {
		if !c.Passed {
			return c
		}
	}
	return Check{}
}
