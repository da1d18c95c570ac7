// Package sym defines canonical symbols for Kestrel operations and system markers.
// These symbols are stable across CLI output, logs, and documentation.
package sym

// Query operation symbols.
const (
	Find   = "⌕" // find — retrieve concepts from the graph
	Upsert = "⊕" // upsert — create or merge a concept
	Delete = "⊖" // delete — remove concepts from the graph
)

// System infrastructure symbols.
const (
	DB     = "⊔" // database/storage layer
	Schema = "▤" // schema registry and type system
	Cursor = "⇢" // pagination cursor
	Server = "⇄" // HTTP query API
)

// OperationSymbols maps query operation keywords to their glyphs.
var OperationSymbols = map[string]string{
	"FIND":   Find,
	"UPSERT": Upsert,
	"DELETE": Delete,
}

// ForOperation returns the glyph for a query operation keyword,
// or the empty string when the keyword is unknown.
func ForOperation(op string) string {
	return OperationSymbols[op]
}
