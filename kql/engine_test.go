package kql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestreldb/kestrel/graph"
	kestreltesting "github.com/kestreldb/kestrel/internal/testing"
	"github.com/kestreldb/kestrel/kql/schema"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	conn := kestreltesting.CreateTestDB(t)
	store := graph.NewSQLStore(conn, nil)
	return NewEngine(store, schema.NewRegistry(), opts, nil)
}

func TestExecuteQuery(t *testing.T) {
	t.Run("upsert then find returns the stored concept", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		upserted := engine.ExecuteQuery(context.Background(),
			"UPSERT Policy {name: 'Password Rotation', frequency: 'quarterly'}")
		require.True(t, upserted.OK, "upsert should succeed: %+v", upserted.Error)
		data := upserted.Data.(map[string]interface{})
		assert.Equal(t, true, data["created"])

		found := engine.ExecuteQuery(context.Background(),
			"FIND Policy WHERE name = 'Password Rotation'")
		require.True(t, found.OK, "find should succeed: %+v", found.Error)
		rows := found.Data.([]map[string]interface{})
		require.Len(t, rows, 1)
		assert.Equal(t, "quarterly", rows[0]["frequency"])
	})

	t.Run("syntax errors carry position and zero side effects", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		resp := engine.ExecuteQuery(context.Background(), "FIND Task WHERE name")
		require.False(t, resp.OK)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeSyntaxError, resp.Error.Code)
	})

	t.Run("missing operation is a syntax error", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		resp := engine.ExecuteQuery(context.Background(), "WHERE name = 'x'")
		require.False(t, resp.OK)
		assert.Equal(t, CodeSyntaxError, resp.Error.Code)
	})

	t.Run("strict mode rejects sum over string evidence", func(t *testing.T) {
		engine := newTestEngine(t, Options{Strict: true})

		resp := engine.ExecuteQuery(context.Background(),
			"FIND Task WHERE status = 'open' AGGREGATE SUM(status)")
		require.False(t, resp.OK)
		assert.Equal(t, CodeSemanticError, resp.Error.Code)
	})

	t.Run("non-strict mode reports compliance without aborting", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		resp := engine.ExecuteQuery(context.Background(),
			"FIND Task WHERE status = 'open' AGGREGATE SUM(status)")
		require.True(t, resp.OK)
		require.NotNil(t, resp.Metadata)
		require.NotNil(t, resp.Metadata.Compliance)
		compliance := resp.Metadata.Compliance
		assert.Less(t, compliance.Score, 1.0)
		assert.GreaterOrEqual(t, compliance.Score, 0.0)
	})

	t.Run("upsert without name is a type validation error", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		resp := engine.ExecuteQuery(context.Background(), "UPSERT Task {status: 'open'}")
		require.False(t, resp.OK)
		assert.Equal(t, CodeTypeValidationError, resp.Error.Code)
	})

	t.Run("malformed cursor is a pagination error", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		resp := engine.ExecuteQuery(context.Background(), "FIND Task CURSOR 'not-a-token'")
		require.False(t, resp.OK)
		assert.Equal(t, CodePaginationError, resp.Error.Code)
	})

	t.Run("default and max limits apply to find", func(t *testing.T) {
		engine := newTestEngine(t, Options{DefaultLimit: 2, MaxLimit: 2})
		for _, q := range []string{
			"UPSERT Task {name: 'a'}",
			"UPSERT Task {name: 'b'}",
			"UPSERT Task {name: 'c'}",
		} {
			require.True(t, engine.ExecuteQuery(context.Background(), q).OK)
		}

		resp := engine.ExecuteQuery(context.Background(), "FIND Task")
		require.True(t, resp.OK)
		rows := resp.Data.([]map[string]interface{})
		assert.Len(t, rows, 2)
		require.NotNil(t, resp.Pagination)
		assert.True(t, resp.Pagination.HasMore)

		capped := engine.ExecuteQuery(context.Background(), "FIND Task LIMIT 50")
		require.True(t, capped.OK)
		assert.Len(t, capped.Data.([]map[string]interface{}), 2)
	})

	t.Run("delete reports the removed count", func(t *testing.T) {
		engine := newTestEngine(t, Options{})
		require.True(t, engine.ExecuteQuery(context.Background(), "UPSERT Task {name: 'gone'}").OK)

		resp := engine.ExecuteQuery(context.Background(), "DELETE Task WHERE name = 'gone'")
		require.True(t, resp.OK)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, int64(1), data["deleted"])
	})

	t.Run("execution time is always reported", func(t *testing.T) {
		engine := newTestEngine(t, Options{})

		resp := engine.ExecuteQuery(context.Background(), "FIND Task")
		require.True(t, resp.OK)
		require.NotNil(t, resp.Metadata)
		assert.GreaterOrEqual(t, resp.Metadata.ExecutionTimeMs, 0.0)
	})
}
