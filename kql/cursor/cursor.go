// Package cursor encodes and decodes opaque pagination continuation tokens.
//
// A token binds a resume position to a fingerprint of the query's shape, so
// resuming with a structurally different query is rejected rather than
// silently returning wrong-context results. Tokens are base64-encoded JSON;
// callers must treat them as opaque.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/kestreldb/kestrel/kql/ast"
)

// Error codes carried by PaginationError.
const (
	CodeInvalid  = "CURSOR_INVALID"  // malformed or undecodable token
	CodeMismatch = "CURSOR_MISMATCH" // token minted for a different query shape
)

// PaginationError reports a malformed token or a fingerprint mismatch.
type PaginationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination error (%s): %s", e.Code, e.Message)
}

// payload is the decoded token content. Field names are short on purpose;
// the token is opaque but compact.
type payload struct {
	Fingerprint string `json:"f"`
	Position    int    `json:"p"`
}

// Fingerprint derives a deterministic hex identifier from the query's
// structural shape. LIMIT and CURSOR are excluded from the shape, so a
// continuation token survives page-size changes but nothing else.
func Fingerprint(q *ast.Query) string {
	h := fnv.New64a()
	h.Write([]byte(q.Shape()))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Encode mints a token for the given fingerprint and resume position.
func Encode(fingerprint string, position int) string {
	raw, err := json.Marshal(payload{Fingerprint: fingerprint, Position: position})
	if err != nil {
		// payload contains only a string and an int; marshal cannot fail
		return ""
	}
	return base64.URLEncoding.EncodeToString(raw)
}

// Decode unpacks a token into its fingerprint and resume position.
func Decode(token string) (fingerprint string, position int, err error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, &PaginationError{Code: CodeInvalid, Message: "cursor is not valid base64"}
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", 0, &PaginationError{Code: CodeInvalid, Message: "cursor payload is malformed"}
	}
	if p.Fingerprint == "" || p.Position < 0 {
		return "", 0, &PaginationError{Code: CodeInvalid, Message: "cursor payload is incomplete"}
	}
	return p.Fingerprint, p.Position, nil
}

// Verify decodes a token and checks it against the query it is resuming.
// Returns the resume position on success.
func Verify(token string, q *ast.Query) (int, error) {
	fingerprint, position, err := Decode(token)
	if err != nil {
		return 0, err
	}
	if expected := Fingerprint(q); fingerprint != expected {
		return 0, &PaginationError{
			Code:    CodeMismatch,
			Message: "cursor was minted for a structurally different query",
		}
	}
	return position, nil
}
