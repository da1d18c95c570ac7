package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/kestreldb/kestrel/kql/lexer"
)

// ErrorContext indicates the environment where parser errors will be displayed
type ErrorContext string

const (
	// ErrorContextTerminal indicates errors will be displayed in terminal with ANSI colors
	ErrorContextTerminal ErrorContext = "terminal"
	// ErrorContextPlain indicates errors will be displayed without ANSI codes (web UI, logs, etc)
	ErrorContextPlain ErrorContext = "plain"
)

// ErrorKind categorizes parser errors for programmatic handling
type ErrorKind string

const (
	ErrorKindSyntax  ErrorKind = "syntax"  // Invalid syntax (malformed query)
	ErrorKindClause  ErrorKind = "clause"  // Clause ordering/duplication error
	ErrorKindUnknown ErrorKind = "unknown" // Uncategorized
)

// Error represents a structured parser error with metadata
type Error struct {
	Err         error                  // Underlying error
	Kind        ErrorKind              // Error category
	Message     string                 // Human-readable message
	Pos         lexer.Position         // Source position where error occurred
	Expected    string                 // What the grammar required here
	Found       string                 // What was actually present
	Suggestions []string               // Possible fixes
	Context     map[string]interface{} // Additional debug context
	Timestamp   time.Time              // When error occurred
}

// Error implements error interface
func (e *Error) Error() string {
	return e.FormatError(ErrorContextPlain)
}

// FormatError generates context-appropriate error message
func (e *Error) FormatError(ctx ErrorContext) string {
	if ctx == ErrorContextTerminal {
		return e.formatTerminalError()
	}
	return e.formatPlainError()
}

// formatPlainError creates concise error for web UI/logs
func (e *Error) formatPlainError() string {
	msg := fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Pos.Line, e.Pos.Character)
	if e.Expected != "" {
		msg += fmt.Sprintf(": expected %s, found %s", e.Expected, e.Found)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(". Suggestions: %s", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// formatTerminalError creates rich colored error for terminal
func (e *Error) formatTerminalError() string {
	baseMsg := pterm.Red(e.Message)

	context := fmt.Sprintf("\n\n%s", pterm.LightCyan("Context:"))
	context += fmt.Sprintf("\n  %s line %d, column %d", pterm.Yellow("Position:"), e.Pos.Line, e.Pos.Character)
	if e.Expected != "" {
		context += fmt.Sprintf("\n  %s %s", pterm.Yellow("Expected:"), e.Expected)
		context += fmt.Sprintf("\n  %s %s", pterm.Yellow("Found:"), e.Found)
	}

	if len(e.Suggestions) > 0 {
		context += fmt.Sprintf("\n\n%s", pterm.Green("Suggestions:"))
		for _, suggestion := range e.Suggestions {
			context += fmt.Sprintf("\n  - %s", suggestion)
		}
	}

	return fmt.Sprintf("%s%s", baseMsg, context)
}

// Unwrap for errors.Is/As compatibility
func (e *Error) Unwrap() error {
	return e.Err
}

// Builder pattern for constructing parser errors

// NewError creates a new parser Error with the given kind and message
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Context:   make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// WithPos sets the source position where the error occurred
func (e *Error) WithPos(pos lexer.Position) *Error {
	e.Pos = pos
	return e
}

// WithExpectation records what the grammar required versus what was found
func (e *Error) WithExpectation(expected, found string) *Error {
	e.Expected = expected
	e.Found = found
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithContext adds debug context metadata
func (e *Error) WithContext(key string, value interface{}) *Error {
	e.Context[key] = value
	return e
}

// WithUnderlying sets the underlying error
func (e *Error) WithUnderlying(err error) *Error {
	e.Err = err
	return e
}
