// Package executor walks a validated query AST and issues operations
// through the graph store contract.
//
// WHERE conditions are pushed to the store and evaluated during the fetch;
// FILTER conditions are applied in-process against materialized rows. GROUP
// BY partitions the filtered rows, AGGREGATE computes per partition (or
// globally), and LIMIT/CURSOR paginate the final sequence last.
package executor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kestreldb/kestrel/errors"
	"github.com/kestreldb/kestrel/graph"
	"github.com/kestreldb/kestrel/kql/ast"
	"github.com/kestreldb/kestrel/kql/cursor"
	"github.com/kestreldb/kestrel/kql/schema"
)

// ExecutionError reports a store-layer failure or an exceeded deadline.
// The store's atomicity guarantee means no partial write accompanies it.
type ExecutionError struct {
	Cause   error
	Timeout bool
}

func (e *ExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("execution timed out: %v", e.Cause)
	}
	return fmt.Sprintf("execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Pagination describes whether more results exist beyond this page and the
// token that resumes from them.
type Pagination struct {
	HasMore bool   `json:"has_more"`
	Cursor  string `json:"cursor,omitempty"`
}

// Result is the outcome of executing one query.
type Result struct {
	Rows       []map[string]interface{} `json:"rows"`
	Pagination Pagination               `json:"pagination"`

	// Deleted counts removed concepts; populated for DELETE only.
	Deleted int64 `json:"deleted,omitempty"`

	// Created reports whether an UPSERT created (vs updated) its concept.
	Created bool `json:"created,omitempty"`
}

// Executor runs validated queries against a graph store.
type Executor struct {
	store    graph.Store
	upserter *Upserter
	logger   *zap.SugaredLogger
}

// New creates an executor. The registry backs UPSERT coercion and
// validation.
func New(store graph.Store, registry *schema.Registry, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		store:    store,
		upserter: NewUpserter(store, registry, logger),
		logger:   logger,
	}
}

// Execute dispatches a validated query to its operation handler.
func (e *Executor) Execute(ctx context.Context, q *ast.Query) (*Result, error) {
	switch q.Operation {
	case ast.OpFind:
		return e.executeFind(ctx, q)
	case ast.OpUpsert:
		return e.executeUpsert(ctx, q)
	case ast.OpDelete:
		return e.executeDelete(ctx, q)
	}
	return nil, errors.Newf("unsupported operation %q", q.Operation)
}

func (e *Executor) executeFind(ctx context.Context, q *ast.Query) (*Result, error) {
	concepts, err := e.store.FindConcepts(ctx, q.Target, pushdownFilter(q.Where))
	if err != nil {
		return nil, e.wrapStore(ctx, err)
	}

	rows := make([]map[string]interface{}, 0, len(concepts))
	for _, c := range concepts {
		rows = append(rows, c.Row())
	}

	// FILTER runs after the fetch, against materialized rows
	if len(q.Filter) > 0 {
		filtered := rows[:0]
		for _, row := range rows {
			if matchAll(row, q.Filter) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	if len(q.GroupBy) > 0 {
		rows = groupRows(rows, q.GroupBy, q.Aggregate)
	} else if len(q.Aggregate) > 0 {
		rows = []map[string]interface{}{aggregateRows(rows, q.Aggregate)}
	}

	return paginate(rows, q)
}

func (e *Executor) executeUpsert(ctx context.Context, q *ast.Query) (*Result, error) {
	upserted, err := e.upserter.Upsert(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Result{
		Rows:    []map[string]interface{}{upserted.Concept.Row()},
		Created: upserted.Created,
	}, nil
}

func (e *Executor) executeDelete(ctx context.Context, q *ast.Query) (*Result, error) {
	deleted, err := e.store.DeleteConcepts(ctx, q.Target, pushdownFilter(q.Where))
	if err != nil {
		return nil, e.wrapStore(ctx, err)
	}
	if e.logger != nil {
		e.logger.Infow("Deleted concepts", "label", q.Target, "count", deleted)
	}
	return &Result{Rows: []map[string]interface{}{}, Deleted: deleted}, nil
}

// wrapStore converts a store failure into an ExecutionError, marking it as
// a timeout when the request deadline was the cause.
func (e *Executor) wrapStore(ctx context.Context, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
	return &ExecutionError{Cause: err, Timeout: timeout}
}

// pushdownFilter translates WHERE conditions into the store-side filter.
func pushdownFilter(conds []ast.Condition) graph.Filter {
	if len(conds) == 0 {
		return graph.Filter{}
	}
	out := make([]graph.Condition, len(conds))
	for i, c := range conds {
		out[i] = graph.Condition{
			Path:  c.Path,
			Op:    graph.Op(c.Operator),
			Value: c.Value.Value(),
		}
	}
	return graph.Filter{Conditions: out}
}

// groupRows partitions rows by the listed paths and computes the aggregate
// calls per partition. Partitions keep first-seen order.
func groupRows(rows []map[string]interface{}, groupBy []ast.Path, calls []ast.AggregateCall) []map[string]interface{} {
	type partition struct {
		keys map[string]interface{}
		rows []map[string]interface{}
	}

	var order []string
	partitions := make(map[string]*partition)

	for _, row := range rows {
		keyParts := make([]string, len(groupBy))
		keys := make(map[string]interface{}, len(groupBy))
		for i, path := range groupBy {
			value, ok := resolvePath(row, path)
			if !ok {
				value = nil
			}
			keyParts[i] = fmt.Sprintf("%v", value)
			keys[path.String()] = value
		}
		key := strings.Join(keyParts, "\x1f")

		p, seen := partitions[key]
		if !seen {
			p = &partition{keys: keys}
			partitions[key] = p
			order = append(order, key)
		}
		p.rows = append(p.rows, row)
	}

	out := make([]map[string]interface{}, 0, len(order))
	for _, key := range order {
		p := partitions[key]
		row := aggregateRows(p.rows, calls)
		for k, v := range p.keys {
			row[k] = v
		}
		out = append(out, row)
	}
	return out
}

// aggregateRows computes every aggregate call over one row set.
func aggregateRows(rows []map[string]interface{}, calls []ast.AggregateCall) map[string]interface{} {
	out := make(map[string]interface{}, len(calls))
	for _, call := range calls {
		out[call.ResultName()] = aggregate(rows, call)
	}
	return out
}

func aggregate(rows []map[string]interface{}, call ast.AggregateCall) interface{} {
	switch call.Fn {
	case ast.AggCount:
		if call.Wildcard {
			return len(rows)
		}
		count := 0
		for _, row := range rows {
			if _, ok := resolvePath(row, call.Path); ok {
				count++
			}
		}
		return count

	case ast.AggDistinct:
		if call.Wildcard {
			return len(rows)
		}
		seen := make(map[string]bool)
		for _, row := range rows {
			if value, ok := resolvePath(row, call.Path); ok {
				seen[fmt.Sprintf("%v", value)] = true
			}
		}
		return len(seen)

	case ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax:
		return aggregateNumeric(rows, call)
	}
	return nil
}

// aggregateNumeric computes SUM/AVG/MIN/MAX over the numeric values the
// path resolves to. Rows where the path is missing or non-numeric are
// skipped; an empty value set yields nil (SUM yields 0).
func aggregateNumeric(rows []map[string]interface{}, call ast.AggregateCall) interface{} {
	var values []float64
	for _, row := range rows {
		raw, ok := resolvePath(row, call.Path)
		if !ok {
			continue
		}
		if n, ok := toNumber(raw); ok {
			values = append(values, n)
		}
	}

	if len(values) == 0 {
		if call.Fn == ast.AggSum {
			return float64(0)
		}
		return nil
	}

	sum := float64(0)
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	switch call.Fn {
	case ast.AggSum:
		return sum
	case ast.AggAvg:
		return sum / float64(len(values))
	case ast.AggMin:
		return min
	case ast.AggMax:
		return max
	}
	return nil
}

// paginate applies CURSOR then LIMIT over the final row sequence, minting a
// continuation token when rows remain beyond the page.
func paginate(rows []map[string]interface{}, q *ast.Query) (*Result, error) {
	position := 0
	if q.Cursor != nil {
		resumed, err := cursor.Verify(*q.Cursor, q)
		if err != nil {
			return nil, err
		}
		position = resumed
	}
	if position > len(rows) {
		position = len(rows)
	}
	rows = rows[position:]

	result := &Result{Rows: rows}
	if q.Limit != nil && len(rows) > *q.Limit {
		next := position + *q.Limit
		result.Rows = rows[:*q.Limit]
		result.Pagination = Pagination{
			HasMore: true,
			Cursor:  cursor.Encode(cursor.Fingerprint(q), next),
		}
	}
	return result, nil
}
