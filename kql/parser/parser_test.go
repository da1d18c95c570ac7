package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestreldb/kestrel/kql/ast"
)

func parse(t *testing.T, text string) *ast.Query {
	t.Helper()
	q, err := New(DefaultDialect()).ParseString(text)
	require.NoError(t, err)
	return q
}

func parseErr(t *testing.T, text string) *Error {
	t.Helper()
	_, err := New(DefaultDialect()).ParseString(text)
	require.Error(t, err)
	var parseErr *Error
	require.ErrorAs(t, err, &parseErr)
	return parseErr
}

func TestParseOperations(t *testing.T) {
	t.Run("find with label", func(t *testing.T) {
		q := parse(t, "FIND Task")
		assert.Equal(t, ast.OpFind, q.Operation)
		assert.Equal(t, "Task", q.Target)
	})

	t.Run("find wildcard", func(t *testing.T) {
		q := parse(t, "FIND *")
		assert.True(t, q.IsWildcard())
	})

	t.Run("upsert with object literal", func(t *testing.T) {
		q := parse(t, "UPSERT Task {name: 'deploy', priority: 3, done: false}")
		assert.Equal(t, ast.OpUpsert, q.Operation)
		require.Len(t, q.Object, 3)
		assert.Equal(t, "deploy", q.Object["name"].String)
		assert.Equal(t, float64(3), q.Object["priority"].Number)
		assert.False(t, q.Object["done"].Boolean)
	})

	t.Run("upsert keeps dotted keys verbatim", func(t *testing.T) {
		q := parse(t, "UPSERT Task {name: 'x', metadata.deadline: '2026-09-01'}")
		require.Contains(t, q.Object, "metadata.deadline")
		assert.Equal(t, "2026-09-01", q.Object["metadata.deadline"].String)
	})

	t.Run("upsert wildcard is rejected", func(t *testing.T) {
		e := parseErr(t, "UPSERT * {name: 'x'}")
		assert.Equal(t, ErrorKindSyntax, e.Kind)
	})

	t.Run("delete with where", func(t *testing.T) {
		q := parse(t, "DELETE Task WHERE status = 'done'")
		assert.Equal(t, ast.OpDelete, q.Operation)
		require.Len(t, q.Where, 1)
	})

	t.Run("delete wildcard without where is rejected", func(t *testing.T) {
		e := parseErr(t, "DELETE *")
		assert.Equal(t, ErrorKindClause, e.Kind)
	})

	t.Run("missing operation", func(t *testing.T) {
		e := parseErr(t, "WHERE a = 1")
		assert.Equal(t, ErrorKindSyntax, e.Kind)
		assert.Contains(t, e.Expected, "FIND")
	})

	t.Run("empty query", func(t *testing.T) {
		e := parseErr(t, "")
		assert.Contains(t, e.Message, "empty")
	})
}

func TestParseModifiers(t *testing.T) {
	t.Run("where with and chain", func(t *testing.T) {
		q := parse(t, "FIND Task WHERE status = 'open' AND priority > 2")
		require.Len(t, q.Where, 2)
		assert.Equal(t, ast.Path{"status"}, q.Where[0].Path)
		assert.Equal(t, ast.OpEq, q.Where[0].Operator)
		assert.Equal(t, ast.OpGt, q.Where[1].Operator)
		assert.Equal(t, float64(2), q.Where[1].Value.Number)
	})

	t.Run("dotted paths become segment lists", func(t *testing.T) {
		q := parse(t, "FIND Task WHERE metadata.deadline = '2026-09-01'")
		assert.Equal(t, ast.Path{"metadata", "deadline"}, q.Where[0].Path)
	})

	t.Run("filter takes a single condition", func(t *testing.T) {
		q := parse(t, "FIND Task FILTER b = 3")
		require.Len(t, q.Filter, 1)
		assert.Equal(t, ast.Path{"b"}, q.Filter[0].Path)
	})

	t.Run("contains operator", func(t *testing.T) {
		q := parse(t, "FIND Task WHERE name CONTAINS 'deploy'")
		assert.Equal(t, ast.OpContains, q.Where[0].Operator)
	})

	t.Run("group by multiple paths", func(t *testing.T) {
		q := parse(t, "FIND Task GROUP BY status, owner.team")
		require.Len(t, q.GroupBy, 2)
		assert.Equal(t, ast.Path{"owner", "team"}, q.GroupBy[1])
	})

	t.Run("aggregate calls", func(t *testing.T) {
		q := parse(t, "FIND Task AGGREGATE COUNT(*), SUM(hours), DISTINCT(owner)")
		require.Len(t, q.Aggregate, 3)
		assert.True(t, q.Aggregate[0].Wildcard)
		assert.Equal(t, ast.AggCount, q.Aggregate[0].Fn)
		assert.Equal(t, ast.Path{"hours"}, q.Aggregate[1].Path)
		assert.Equal(t, ast.AggDistinct, q.Aggregate[2].Fn)
	})

	t.Run("limit and cursor", func(t *testing.T) {
		q := parse(t, "FIND Task LIMIT 25 CURSOR 'abc123'")
		require.NotNil(t, q.Limit)
		assert.Equal(t, 25, *q.Limit)
		require.NotNil(t, q.Cursor)
		assert.Equal(t, "abc123", *q.Cursor)
	})

	t.Run("negative limit is rejected", func(t *testing.T) {
		e := parseErr(t, "FIND Task LIMIT -1")
		assert.Contains(t, e.Message, "LIMIT")
	})

	t.Run("duplicate clauses are rejected", func(t *testing.T) {
		e := parseErr(t, "FIND Task WHERE a = 1 WHERE b = 2")
		assert.Equal(t, ErrorKindClause, e.Kind)
		assert.Contains(t, e.Message, "duplicate WHERE")
	})

	t.Run("duplicate group by is named fully", func(t *testing.T) {
		e := parseErr(t, "FIND Task GROUP BY a GROUP BY b")
		assert.Contains(t, e.Message, "GROUP BY")
	})

	t.Run("errors carry positions", func(t *testing.T) {
		e := parseErr(t, "FIND Task WHERE status =")
		require.NotNil(t, e.Pos)
		assert.Equal(t, 1, e.Pos.Line)
	})
}

func TestDialect(t *testing.T) {
	t.Run("restricted dialect rejects disabled operators", func(t *testing.T) {
		p := New(DialectFromNames([]string{"="}))

		_, err := p.ParseString("FIND Task WHERE name = 'x'")
		require.NoError(t, err)

		_, err = p.ParseString("FIND Task WHERE priority > 2")
		require.Error(t, err)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Contains(t, e.Message, ">")
	})

	t.Run("empty name list falls back to the default dialect", func(t *testing.T) {
		d := DialectFromNames(nil)
		assert.True(t, d.Operators[ast.OpContains])
	})

	t.Run("unknown names are ignored", func(t *testing.T) {
		d := DialectFromNames([]string{"=", "LIKE"})
		assert.True(t, d.Operators[ast.OpEq])
		assert.Len(t, d.Operators, 1)
	})
}
