package sym

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForOperation(t *testing.T) {
	assert.Equal(t, Find, ForOperation("FIND"))
	assert.Equal(t, Upsert, ForOperation("UPSERT"))
	assert.Equal(t, Delete, ForOperation("DELETE"))
	assert.Empty(t, ForOperation("MERGE"))
}

func TestSymbolsDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, g := range []string{Find, Upsert, Delete, DB, Schema, Cursor, Server} {
		assert.False(t, seen[g], "duplicate glyph %q", g)
		seen[g] = true
	}
}
