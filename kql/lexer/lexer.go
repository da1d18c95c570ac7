// Package lexer tokenizes raw KQL query text into typed tokens.
//
// The lexer is a pure function of its input: Scan allocates all state per
// call, so concurrent queries never contend on lexer structures. Literal
// tokens are annotated with an inferred primitive type (string, number,
// boolean) that the semantic validator consumes downstream.
package lexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kestreldb/kestrel/kql/ast"
)

// Kind classifies a token.
type Kind string

const (
	KindKeyword    Kind = "keyword"
	KindIdentifier Kind = "identifier"
	KindString     Kind = "string"
	KindNumber     Kind = "number"
	KindBoolean    Kind = "boolean"
	KindOperator   Kind = "operator"
	KindPunct      Kind = "punct"
	KindEOF        Kind = "eof"
)

// Token is one lexical unit of a query. Literal tokens carry an inferred
// value type; the Literal field holds the decoded value for string, number
// and boolean tokens.
type Token struct {
	Kind     Kind
	Lexeme   string // exact source slice (strings keep their quotes)
	Pos      Position
	Inferred ast.ValueType // set for string/number/boolean tokens
	Literal  ast.Literal   // decoded value for literal tokens
}

// IsKeyword reports whether the token is the given keyword (case-insensitive).
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == KindKeyword && strings.EqualFold(t.Lexeme, kw)
}

// SyntaxError reports a malformed query with the exact source position.
type SyntaxError struct {
	Pos      Position `json:"position"`
	Message  string   `json:"message"`
	Expected string   `json:"expected,omitempty"`
	Found    string   `json:"found,omitempty"`
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("syntax error at line %d, column %d: %s", e.Pos.Line, e.Pos.Character, e.Message)
	if e.Expected != "" {
		msg += fmt.Sprintf(" (expected %s, found %s)", e.Expected, e.Found)
	}
	return msg
}

// keywords maps the uppercase form of every reserved word to itself.
// BY is reserved so GROUP BY can be recognized as two tokens.
var keywords = map[string]struct{}{
	"FIND": {}, "UPSERT": {}, "DELETE": {},
	"WHERE": {}, "FILTER": {}, "GROUP": {}, "BY": {},
	"AGGREGATE": {}, "LIMIT": {}, "CURSOR": {},
	"AND": {}, "CONTAINS": {},
}

// Scan tokenizes query text into a token stream terminated by an EOF token.
// It fails with *SyntaxError on unterminated strings or illegal characters.
func Scan(input string) ([]Token, error) {
	tracker := newPositionTracker(input)
	var tokens []Token

	i := 0
	for i < len(input) {
		c := input[i]

		// Skip whitespace
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			tracker.advanceBytes(1)
			i++
			continue
		}

		start := tracker.mark()

		switch {
		case c == '\'' || c == '"':
			tok, n, err := scanString(input, i, start)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			tracker.advanceBytes(n)
			i += n

		case c >= '0' && c <= '9' || (c == '-' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9'):
			tok, n, err := scanNumber(input, i, start)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			tracker.advanceBytes(n)
			i += n

		case isIdentStart(c):
			tok, n := scanWord(input, i, start)
			tokens = append(tokens, tok)
			tracker.advanceBytes(n)
			i += n

		case c == '>' || c == '<' || c == '=' || c == '!':
			tok, n, err := scanOperator(input, i, start)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			tracker.advanceBytes(n)
			i += n

		case c == '{' || c == '}' || c == '(' || c == ')' || c == ',' || c == ':' || c == '*' || c == '.':
			tokens = append(tokens, Token{Kind: KindPunct, Lexeme: string(c), Pos: start})
			tracker.advanceBytes(1)
			i++

		default:
			return nil, &SyntaxError{
				Pos:     start,
				Message: fmt.Sprintf("illegal character %q", string(c)),
			}
		}
	}

	tokens = append(tokens, Token{Kind: KindEOF, Pos: tracker.mark()})
	return tokens, nil
}

// scanString consumes a quoted string with backslash escapes. Returns the
// token and the number of source bytes consumed.
func scanString(input string, i int, start Position) (Token, int, error) {
	quote := input[i]
	var b strings.Builder
	j := i + 1
	for j < len(input) {
		c := input[j]
		if c == '\\' && j+1 < len(input) {
			next := input[j+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(next)
			}
			j += 2
			continue
		}
		if c == quote {
			value := b.String()
			return Token{
				Kind:     KindString,
				Lexeme:   input[i : j+1],
				Pos:      start,
				Inferred: ast.TypeString,
				Literal:  ast.StringLiteral(value),
			}, j + 1 - i, nil
		}
		b.WriteByte(c)
		j++
	}
	return Token{}, 0, &SyntaxError{Pos: start, Message: "unterminated string literal"}
}

// scanNumber consumes an optionally signed decimal number.
func scanNumber(input string, i int, start Position) (Token, int, error) {
	j := i
	if input[j] == '-' {
		j++
	}
	sawDot := false
	for j < len(input) {
		c := input[j]
		if c == '.' && !sawDot && j+1 < len(input) && input[j+1] >= '0' && input[j+1] <= '9' {
			sawDot = true
			j++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		j++
	}
	lexeme := input[i:j]
	n, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		return Token{}, 0, &SyntaxError{Pos: start, Message: fmt.Sprintf("malformed number %q", lexeme)}
	}
	return Token{
		Kind:     KindNumber,
		Lexeme:   lexeme,
		Pos:      start,
		Inferred: ast.TypeNumber,
		Literal:  ast.NumberLiteral(n),
	}, j - i, nil
}

// scanWord consumes an identifier, keyword, or boolean literal.
func scanWord(input string, i int, start Position) (Token, int) {
	j := i
	for j < len(input) && isIdentPart(input[j]) {
		j++
	}
	lexeme := input[i:j]
	upper := strings.ToUpper(lexeme)

	if upper == "TRUE" || upper == "FALSE" {
		return Token{
			Kind:     KindBoolean,
			Lexeme:   lexeme,
			Pos:      start,
			Inferred: ast.TypeBoolean,
			Literal:  ast.BooleanLiteral(upper == "TRUE"),
		}, j - i
	}

	if _, ok := keywords[upper]; ok {
		return Token{Kind: KindKeyword, Lexeme: lexeme, Pos: start}, j - i
	}

	return Token{Kind: KindIdentifier, Lexeme: lexeme, Pos: start}, j - i
}

// scanOperator consumes one of = != > < >= <=.
func scanOperator(input string, i int, start Position) (Token, int, error) {
	c := input[i]
	twoChar := i+1 < len(input) && input[i+1] == '='
	switch c {
	case '=':
		return Token{Kind: KindOperator, Lexeme: "=", Pos: start}, 1, nil
	case '!':
		if twoChar {
			return Token{Kind: KindOperator, Lexeme: "!=", Pos: start}, 2, nil
		}
		return Token{}, 0, &SyntaxError{Pos: start, Message: "illegal character '!' (did you mean '!=')"}
	case '>':
		if twoChar {
			return Token{Kind: KindOperator, Lexeme: ">=", Pos: start}, 2, nil
		}
		return Token{Kind: KindOperator, Lexeme: ">", Pos: start}, 1, nil
	case '<':
		if twoChar {
			return Token{Kind: KindOperator, Lexeme: "<=", Pos: start}, 2, nil
		}
		return Token{Kind: KindOperator, Lexeme: "<", Pos: start}, 1, nil
	}
	return Token{}, 0, &SyntaxError{Pos: start, Message: fmt.Sprintf("illegal operator %q", string(c))}
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
