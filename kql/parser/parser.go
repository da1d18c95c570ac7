// Package parser consumes lexer tokens into a KQL query AST.
//
// It is a hand-written recursive-descent parser: one root operation clause
// (FIND, UPSERT, DELETE) followed by zero or more modifier clauses. Errors
// carry exact source positions and expected/found context so callers can
// render precise diagnostics.
package parser

import (
	"fmt"
	"math"
	"strings"

	"github.com/kestreldb/kestrel/kql/ast"
	"github.com/kestreldb/kestrel/kql/lexer"
)

// Dialect configures which WHERE/FILTER operators the grammar accepts.
// The supported operator set is deliberately explicit configuration rather
// than a hidden assumption; see config key kql.operators.
type Dialect struct {
	Operators map[ast.Operator]bool
}

// DefaultDialect enables the full operator set.
func DefaultDialect() Dialect {
	return Dialect{Operators: map[ast.Operator]bool{
		ast.OpEq:       true,
		ast.OpNeq:      true,
		ast.OpContains: true,
		ast.OpGt:       true,
		ast.OpLt:       true,
		ast.OpGte:      true,
		ast.OpLte:      true,
	}}
}

// DialectFromNames builds a Dialect from operator names, e.g. from config.
// Unknown names are ignored; an empty list yields the default dialect.
func DialectFromNames(names []string) Dialect {
	if len(names) == 0 {
		return DefaultDialect()
	}
	d := Dialect{Operators: make(map[ast.Operator]bool, len(names))}
	for _, n := range names {
		op := ast.Operator(strings.ToUpper(n))
		switch op {
		case ast.OpEq, ast.OpNeq, ast.OpContains, ast.OpGt, ast.OpLt, ast.OpGte, ast.OpLte:
			d.Operators[op] = true
		}
	}
	return d
}

// Parser walks a token stream produced by the lexer.
type Parser struct {
	dialect Dialect
	tokens  []lexer.Token
	pos     int
}

// New creates a parser with the given dialect.
func New(dialect Dialect) *Parser {
	return &Parser{dialect: dialect}
}

// ParseString tokenizes and parses query text in one call.
func (p *Parser) ParseString(text string) (*ast.Query, error) {
	tokens, err := lexer.Scan(text)
	if err != nil {
		return nil, err
	}
	return p.Parse(tokens)
}

// Parse consumes tokens into a query AST. The root operation clause is
// mandatory; each modifier clause may appear at most once.
func (p *Parser) Parse(tokens []lexer.Token) (*ast.Query, error) {
	p.tokens = tokens
	p.pos = 0

	q, err := p.parseOperation()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for !p.atEOF() {
		tok := p.peek()
		if tok.Kind != lexer.KindKeyword {
			return nil, NewError(ErrorKindSyntax, "unexpected token").
				WithPos(tok.Pos).
				WithExpectation("modifier clause or end of query", describe(tok))
		}

		clause := strings.ToUpper(tok.Lexeme)
		if clause == "GROUP" {
			clause = "GROUP BY"
		}
		if seen[clause] {
			return nil, NewError(ErrorKindClause, fmt.Sprintf("duplicate %s clause", clause)).
				WithPos(tok.Pos).
				WithSuggestion(fmt.Sprintf("combine conditions into a single %s clause", clause))
		}
		seen[clause] = true

		switch clause {
		case "WHERE":
			conds, err := p.parseConditionList()
			if err != nil {
				return nil, err
			}
			q.Where = conds
		case "FILTER":
			p.advance()
			cond, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			q.Filter = []ast.Condition{cond}
		case "GROUP BY":
			paths, err := p.parseGroupBy()
			if err != nil {
				return nil, err
			}
			q.GroupBy = paths
		case "AGGREGATE":
			calls, err := p.parseAggregate()
			if err != nil {
				return nil, err
			}
			q.Aggregate = calls
		case "LIMIT":
			n, err := p.parseLimit()
			if err != nil {
				return nil, err
			}
			q.Limit = &n
		case "CURSOR":
			c, err := p.parseCursor()
			if err != nil {
				return nil, err
			}
			q.Cursor = &c
		default:
			return nil, NewError(ErrorKindSyntax, fmt.Sprintf("unexpected keyword %s", tok.Lexeme)).
				WithPos(tok.Pos).
				WithExpectation("WHERE, FILTER, GROUP BY, AGGREGATE, LIMIT or CURSOR", describe(tok))
		}
	}

	if q.Operation == ast.OpDelete && q.IsWildcard() && len(q.Where) == 0 {
		return nil, NewError(ErrorKindClause, "DELETE * requires a WHERE clause").
			WithPos(tokens[0].Pos).
			WithSuggestion("name a label (DELETE Task WHERE ...) or add a WHERE condition")
	}

	return q, nil
}

// parseOperation parses the mandatory root clause.
func (p *Parser) parseOperation() (*ast.Query, error) {
	tok := p.peek()
	if tok.Kind == lexer.KindEOF {
		return nil, NewError(ErrorKindSyntax, "empty query").
			WithPos(tok.Pos).
			WithExpectation("FIND, UPSERT or DELETE", "end of query")
	}
	if tok.Kind != lexer.KindKeyword {
		return nil, NewError(ErrorKindSyntax, "query must begin with an operation").
			WithPos(tok.Pos).
			WithExpectation("FIND, UPSERT or DELETE", describe(tok))
	}

	switch strings.ToUpper(tok.Lexeme) {
	case "FIND":
		p.advance()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &ast.Query{Operation: ast.OpFind, Target: target}, nil

	case "UPSERT":
		p.advance()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		if target == "*" {
			return nil, NewError(ErrorKindSyntax, "UPSERT requires a named label").
				WithPos(tok.Pos).
				WithExpectation("label identifier", "*")
		}
		object, err := p.parseObjectLiteral()
		if err != nil {
			return nil, err
		}
		return &ast.Query{Operation: ast.OpUpsert, Target: target, Object: object}, nil

	case "DELETE":
		p.advance()
		target, err := p.parseTarget()
		if err != nil {
			return nil, err
		}
		return &ast.Query{Operation: ast.OpDelete, Target: target}, nil
	}

	return nil, NewError(ErrorKindSyntax, fmt.Sprintf("unknown operation %s", tok.Lexeme)).
		WithPos(tok.Pos).
		WithExpectation("FIND, UPSERT or DELETE", describe(tok))
}

// parseTarget parses a label identifier or the wildcard *.
func (p *Parser) parseTarget() (string, error) {
	tok := p.peek()
	if tok.Kind == lexer.KindIdentifier {
		p.advance()
		return tok.Lexeme, nil
	}
	if tok.Kind == lexer.KindPunct && tok.Lexeme == "*" {
		p.advance()
		return "*", nil
	}
	return "", NewError(ErrorKindSyntax, "missing query target").
		WithPos(tok.Pos).
		WithExpectation("label identifier or *", describe(tok))
}

// parseConditionList parses WHERE condition (AND condition)*.
func (p *Parser) parseConditionList() ([]ast.Condition, error) {
	p.advance() // consume WHERE
	var conds []ast.Condition
	for {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
		if p.peek().IsKeyword("AND") {
			p.advance()
			continue
		}
		return conds, nil
	}
}

// parseCondition parses path operator literal.
func (p *Parser) parseCondition() (ast.Condition, error) {
	path, err := p.parsePath()
	if err != nil {
		return ast.Condition{}, err
	}

	opTok := p.peek()
	var op ast.Operator
	switch {
	case opTok.Kind == lexer.KindOperator:
		op = ast.Operator(opTok.Lexeme)
	case opTok.IsKeyword("CONTAINS"):
		op = ast.OpContains
	default:
		return ast.Condition{}, NewError(ErrorKindSyntax, "missing comparison operator").
			WithPos(opTok.Pos).
			WithExpectation("comparison operator", describe(opTok))
	}
	if !p.dialect.Operators[op] {
		return ast.Condition{}, NewError(ErrorKindSyntax, fmt.Sprintf("operator %s is not enabled in this dialect", op)).
			WithPos(opTok.Pos).
			WithSuggestion("enable it via the kql.operators configuration")
	}
	p.advance()

	litTok := p.peek()
	switch litTok.Kind {
	case lexer.KindString, lexer.KindNumber, lexer.KindBoolean:
		p.advance()
		return ast.Condition{Path: path, Operator: op, Value: litTok.Literal}, nil
	}
	return ast.Condition{}, NewError(ErrorKindSyntax, "missing comparison value").
		WithPos(litTok.Pos).
		WithExpectation("string, number or boolean literal", describe(litTok))
}

// parsePath parses identifier (. identifier)* into a segment list.
func (p *Parser) parsePath() (ast.Path, error) {
	tok := p.peek()
	if tok.Kind != lexer.KindIdentifier {
		return nil, NewError(ErrorKindSyntax, "missing property path").
			WithPos(tok.Pos).
			WithExpectation("property path", describe(tok))
	}
	p.advance()
	path := ast.Path{tok.Lexeme}

	for p.peek().Kind == lexer.KindPunct && p.peek().Lexeme == "." {
		p.advance()
		seg := p.peek()
		if seg.Kind != lexer.KindIdentifier {
			return nil, NewError(ErrorKindSyntax, "incomplete property path").
				WithPos(seg.Pos).
				WithExpectation("path segment after '.'", describe(seg))
		}
		p.advance()
		path = append(path, seg.Lexeme)
	}
	return path, nil
}

// parseGroupBy parses GROUP BY path (, path)*.
func (p *Parser) parseGroupBy() ([]ast.Path, error) {
	p.advance() // GROUP
	tok := p.peek()
	if !tok.IsKeyword("BY") {
		return nil, NewError(ErrorKindSyntax, "GROUP must be followed by BY").
			WithPos(tok.Pos).
			WithExpectation("BY", describe(tok))
	}
	p.advance()

	var paths []ast.Path
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		if p.peek().Kind == lexer.KindPunct && p.peek().Lexeme == "," {
			p.advance()
			continue
		}
		return paths, nil
	}
}

// parseAggregate parses AGGREGATE fn(path|*) (, fn(path|*))*.
func (p *Parser) parseAggregate() ([]ast.AggregateCall, error) {
	p.advance() // AGGREGATE
	var calls []ast.AggregateCall
	for {
		call, err := p.parseAggregateCall()
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
		if p.peek().Kind == lexer.KindPunct && p.peek().Lexeme == "," {
			p.advance()
			continue
		}
		return calls, nil
	}
}

func (p *Parser) parseAggregateCall() (ast.AggregateCall, error) {
	tok := p.peek()
	if tok.Kind != lexer.KindIdentifier {
		return ast.AggregateCall{}, NewError(ErrorKindSyntax, "missing aggregate function").
			WithPos(tok.Pos).
			WithExpectation("COUNT, SUM, AVG, MIN, MAX or DISTINCT", describe(tok))
	}
	fn := ast.AggregateFn(strings.ToUpper(tok.Lexeme))
	switch fn {
	case ast.AggCount, ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax, ast.AggDistinct:
	default:
		return ast.AggregateCall{}, NewError(ErrorKindSyntax, fmt.Sprintf("unknown aggregate function %s", tok.Lexeme)).
			WithPos(tok.Pos).
			WithExpectation("COUNT, SUM, AVG, MIN, MAX or DISTINCT", describe(tok))
	}
	p.advance()

	if err := p.expectPunct("("); err != nil {
		return ast.AggregateCall{}, err
	}

	call := ast.AggregateCall{Fn: fn}
	if p.peek().Kind == lexer.KindPunct && p.peek().Lexeme == "*" {
		p.advance()
		call.Wildcard = true
	} else {
		path, err := p.parsePath()
		if err != nil {
			return ast.AggregateCall{}, err
		}
		call.Path = path
	}

	if err := p.expectPunct(")"); err != nil {
		return ast.AggregateCall{}, err
	}
	return call, nil
}

// parseLimit parses LIMIT integer.
func (p *Parser) parseLimit() (int, error) {
	p.advance() // LIMIT
	tok := p.peek()
	if tok.Kind != lexer.KindNumber {
		return 0, NewError(ErrorKindSyntax, "LIMIT requires an integer").
			WithPos(tok.Pos).
			WithExpectation("integer", describe(tok))
	}
	n := tok.Literal.Number
	if n < 0 || n != math.Trunc(n) {
		return 0, NewError(ErrorKindSyntax, "LIMIT must be a non-negative integer").
			WithPos(tok.Pos).
			WithExpectation("non-negative integer", tok.Lexeme)
	}
	p.advance()
	return int(n), nil
}

// parseCursor parses CURSOR string-literal.
func (p *Parser) parseCursor() (string, error) {
	p.advance() // CURSOR
	tok := p.peek()
	if tok.Kind != lexer.KindString {
		return "", NewError(ErrorKindSyntax, "CURSOR requires a string token").
			WithPos(tok.Pos).
			WithExpectation("string literal", describe(tok))
	}
	p.advance()
	return tok.Literal.String, nil
}

// parseObjectLiteral parses { key: literal, ... }. Keys may use dot notation
// for nested property writes; dotted keys are preserved verbatim so the
// upsert engine can split them into segments.
func (p *Parser) parseObjectLiteral() (map[string]ast.Literal, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	object := make(map[string]ast.Literal)
	if p.peek().Kind == lexer.KindPunct && p.peek().Lexeme == "}" {
		p.advance()
		return object, nil
	}

	for {
		key, err := p.parseObjectKey()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}

		tok := p.peek()
		switch tok.Kind {
		case lexer.KindString, lexer.KindNumber, lexer.KindBoolean:
			p.advance()
			object[key] = tok.Literal
		default:
			return nil, NewError(ErrorKindSyntax, "object values must be scalar literals").
				WithPos(tok.Pos).
				WithExpectation("string, number or boolean literal", describe(tok))
		}

		next := p.peek()
		if next.Kind == lexer.KindPunct && next.Lexeme == "," {
			p.advance()
			continue
		}
		if next.Kind == lexer.KindPunct && next.Lexeme == "}" {
			p.advance()
			return object, nil
		}
		return nil, NewError(ErrorKindSyntax, "malformed object literal").
			WithPos(next.Pos).
			WithExpectation("',' or '}'", describe(next))
	}
}

// parseObjectKey parses an identifier, dotted identifier chain, or quoted key.
func (p *Parser) parseObjectKey() (string, error) {
	tok := p.peek()
	if tok.Kind == lexer.KindString {
		p.advance()
		return tok.Literal.String, nil
	}
	path, err := p.parsePath()
	if err != nil {
		return "", NewError(ErrorKindSyntax, "missing object key").
			WithPos(tok.Pos).
			WithExpectation("identifier or quoted key", describe(tok))
	}
	return path.String(), nil
}

// Token stream helpers

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.KindEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) atEOF() bool {
	return p.peek().Kind == lexer.KindEOF
}

func (p *Parser) expectPunct(s string) error {
	tok := p.peek()
	if tok.Kind == lexer.KindPunct && tok.Lexeme == s {
		p.advance()
		return nil
	}
	return NewError(ErrorKindSyntax, fmt.Sprintf("expected %q", s)).
		WithPos(tok.Pos).
		WithExpectation(fmt.Sprintf("%q", s), describe(tok))
}

// describe renders a token for expected/found diagnostics.
func describe(tok lexer.Token) string {
	if tok.Kind == lexer.KindEOF {
		return "end of query"
	}
	return fmt.Sprintf("%q", tok.Lexeme)
}
