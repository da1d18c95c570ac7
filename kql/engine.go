// Package kql is the execution entry point for the knowledge query
// language: one call takes raw query text through the lexer, parser,
// semantic validator, and executor, and returns a structured response
// envelope.
package kql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kestreldb/kestrel/errors"
	"github.com/kestreldb/kestrel/graph"
	"github.com/kestreldb/kestrel/kql/ast"
	"github.com/kestreldb/kestrel/kql/cursor"
	"github.com/kestreldb/kestrel/kql/executor"
	"github.com/kestreldb/kestrel/kql/lexer"
	"github.com/kestreldb/kestrel/kql/parser"
	"github.com/kestreldb/kestrel/kql/schema"
	"github.com/kestreldb/kestrel/kql/semantic"
)

// Response error codes. Every failure maps to exactly one.
const (
	CodeSyntaxError         = "SYNTAX_ERROR"
	CodeTypeValidationError = "TYPE_VALIDATION_ERROR"
	CodeSemanticError       = "SEMANTIC_ERROR"
	CodePaginationError     = "PAGINATION_ERROR"
	CodeExecutionError      = "EXECUTION_ERROR"
	CodeExecutionTimeout    = "EXECUTION_TIMEOUT"
)

// Options tune engine behavior. They are sourced from the kql.* config
// keys; the zero value gives the documented defaults.
type Options struct {
	// Operators restricts the enabled WHERE/FILTER operator set. Empty
	// enables the full default dialect.
	Operators []string
	// Strict aborts on the first failed semantic check instead of
	// reporting failures alongside results.
	Strict bool
	// StringOrdering permits ordering operators on string operands.
	StringOrdering bool
	// DefaultLimit applies when a FIND carries no LIMIT. Zero disables.
	DefaultLimit int
	// MaxLimit caps any requested LIMIT. Zero disables.
	MaxLimit int
	// Timeout bounds each query execution. Zero disables.
	Timeout time.Duration
}

// ResponseError is the structured error surfaced to callers. Raw internal
// error text goes in Detail, never in Message.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Metadata accompanies successful responses.
type Metadata struct {
	ExecutionTimeMs float64              `json:"execution_time_ms"`
	Compliance      *semantic.Compliance `json:"compliance,omitempty"`
}

// Response is the envelope returned for every query.
type Response struct {
	OK         bool                 `json:"ok"`
	Data       interface{}          `json:"data,omitempty"`
	Pagination *executor.Pagination `json:"pagination,omitempty"`
	Metadata   *Metadata            `json:"metadata,omitempty"`
	Error      *ResponseError       `json:"error,omitempty"`
}

// Engine wires the pipeline stages together. One engine serves concurrent
// requests; per-query state lives on the stack of each call.
type Engine struct {
	parser    *parser.Parser
	validator *semantic.Validator
	registry  *schema.Registry
	executor  *executor.Executor
	opts      Options
	logger    *zap.SugaredLogger
}

// NewEngine builds an engine over the given store and schema registry.
func NewEngine(store graph.Store, registry *schema.Registry, opts Options, logger *zap.SugaredLogger) *Engine {
	dialect := parser.DefaultDialect()
	if len(opts.Operators) > 0 {
		dialect = parser.DialectFromNames(opts.Operators)
	}
	return &Engine{
		parser: parser.New(dialect),
		validator: semantic.NewValidator(semantic.Config{
			StringOrdering: opts.StringOrdering,
			Strict:         opts.Strict,
		}),
		registry: registry,
		executor: executor.New(store, registry, logger),
		opts:     opts,
		logger:   logger,
	}
}

// Registry exposes the engine's schema registry.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// ExecuteQuery runs one query from raw text to response envelope. The
// returned response always carries either data or a structured error;
// internal errors never pass through uninterpreted.
func (e *Engine) ExecuteQuery(ctx context.Context, text string) *Response {
	start := time.Now()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	q, err := e.parser.ParseString(text)
	if err != nil {
		return e.fail(start, nil, err)
	}

	e.applyLimits(q)

	report, err := e.validator.Validate(q)
	if err != nil {
		return e.fail(start, report, err)
	}

	result, err := e.executor.Execute(ctx, q)
	if err != nil {
		return e.fail(start, report, err)
	}

	resp := &Response{
		OK:       true,
		Metadata: e.metadata(start, report),
	}
	switch q.Operation {
	case ast.OpUpsert:
		resp.Data = map[string]interface{}{
			"concept": result.Rows[0],
			"created": result.Created,
		}
	case ast.OpDelete:
		resp.Data = map[string]interface{}{"deleted": result.Deleted}
	default:
		resp.Data = result.Rows
		if result.Pagination.HasMore {
			resp.Pagination = &result.Pagination
		}
	}
	return resp
}

// applyLimits fills in the default page size and clamps oversized limits.
func (e *Engine) applyLimits(q *ast.Query) {
	if q.Operation != ast.OpFind {
		return
	}
	if q.Limit == nil && e.opts.DefaultLimit > 0 {
		limit := e.opts.DefaultLimit
		q.Limit = &limit
	}
	if q.Limit != nil && e.opts.MaxLimit > 0 && *q.Limit > e.opts.MaxLimit {
		capped := e.opts.MaxLimit
		q.Limit = &capped
	}
}

func (e *Engine) metadata(start time.Time, report *semantic.Report) *Metadata {
	md := &Metadata{
		ExecutionTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if report != nil {
		compliance := report.Compliance
		md.Compliance = &compliance
	}
	return md
}

// fail classifies an error from any pipeline stage into the response
// taxonomy.
func (e *Engine) fail(start time.Time, report *semantic.Report, err error) *Response {
	resp := &Response{
		OK:       false,
		Metadata: e.metadata(start, report),
		Error:    classify(err),
	}
	if e.logger != nil {
		e.logger.Debugw("Query failed",
			"code", resp.Error.Code,
			"message", resp.Error.Message,
		)
	}
	return resp
}

// classify maps pipeline errors onto the response error taxonomy.
func classify(err error) *ResponseError {
	var syntaxErr *lexer.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ResponseError{
			Code:    CodeSyntaxError,
			Message: syntaxErr.Message,
			Detail:  fmt.Sprintf("line %d, character %d", syntaxErr.Pos.Line, syntaxErr.Pos.Character),
		}
	}

	var parseErr *parser.Error
	if errors.As(err, &parseErr) {
		return &ResponseError{
			Code:    CodeSyntaxError,
			Message: parseErr.Message,
			Detail:  parseErr.FormatError(parser.ErrorContextPlain),
		}
	}

	var semErr *semantic.TypeValidationError
	if errors.As(err, &semErr) {
		return &ResponseError{
			Code:    CodeSemanticError,
			Message: semErr.First.Description,
			Detail:  semErr.First.Detail,
		}
	}

	var valErr *executor.ValidationError
	if errors.As(err, &valErr) {
		detail := ""
		if len(valErr.Errors) > 0 {
			detail = valErr.Errors[0].Message
		}
		return &ResponseError{
			Code:    CodeTypeValidationError,
			Message: fmt.Sprintf("data does not satisfy schema %s", valErr.Schema),
			Detail:  detail,
		}
	}

	var pagErr *cursor.PaginationError
	if errors.As(err, &pagErr) {
		return &ResponseError{
			Code:    CodePaginationError,
			Message: pagErr.Message,
			Detail:  pagErr.Code,
		}
	}

	var execErr *executor.ExecutionError
	if errors.As(err, &execErr) {
		code := CodeExecutionError
		message := "query execution failed"
		if execErr.Timeout {
			code = CodeExecutionTimeout
			message = "query execution exceeded its deadline"
		}
		return &ResponseError{
			Code:    code,
			Message: message,
			Detail:  execErr.Cause.Error(),
		}
	}

	return &ResponseError{
		Code:    CodeExecutionError,
		Message: "query execution failed",
		Detail:  err.Error(),
	}
}
