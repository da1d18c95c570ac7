package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestreldb/kestrel/kql/ast"
	"github.com/kestreldb/kestrel/kql/parser"
)

func mustParse(t *testing.T, text string) *ast.Query {
	t.Helper()
	q, err := parser.New(parser.DefaultDialect()).ParseString(text)
	require.NoError(t, err)
	return q
}

func TestOperatorMatrix(t *testing.T) {
	v := NewValidator(Config{})

	t.Run("equality accepts every primitive type", func(t *testing.T) {
		for _, q := range []string{
			"FIND Task WHERE name = 'x'",
			"FIND Task WHERE priority = 3",
			"FIND Task WHERE done = true",
			"FIND Task WHERE name != 'x'",
		} {
			report, err := v.Validate(mustParse(t, q))
			require.NoError(t, err)
			assert.True(t, report.Success, q)
		}
	})

	t.Run("ordering accepts numbers", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task WHERE priority > 2"))
		require.NoError(t, err)
		assert.True(t, report.Success)
	})

	t.Run("ordering rejects strings by default", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task WHERE name > 'm'"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})

	t.Run("ordering rejects booleans even with string ordering on", func(t *testing.T) {
		v := NewValidator(Config{StringOrdering: true})
		report, err := v.Validate(mustParse(t, "FIND Task WHERE done > true"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})

	t.Run("string ordering can be enabled", func(t *testing.T) {
		v := NewValidator(Config{StringOrdering: true})
		report, err := v.Validate(mustParse(t, "FIND Task WHERE name > 'm'"))
		require.NoError(t, err)
		assert.True(t, report.Success)
	})

	t.Run("contains requires a string operand", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task WHERE name CONTAINS 'x'"))
		require.NoError(t, err)
		assert.True(t, report.Success)

		report, err = v.Validate(mustParse(t, "FIND Task WHERE name CONTAINS 3"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})

	t.Run("filter conditions are checked like where", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task FILTER done > true"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})
}

func TestAggregateChecks(t *testing.T) {
	v := NewValidator(Config{})

	t.Run("count and distinct accept anything", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task AGGREGATE COUNT(*), DISTINCT(status)"))
		require.NoError(t, err)
		assert.True(t, report.Success)
	})

	t.Run("sum over a wildcard fails", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task AGGREGATE SUM(*)"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})

	t.Run("sum over string-evidenced path fails", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task WHERE status = 'open' AGGREGATE SUM(status)"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})

	t.Run("sum over numeric-evidenced path passes", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task WHERE hours > 1 AGGREGATE SUM(hours)"))
		require.NoError(t, err)
		assert.True(t, report.Success)
	})

	t.Run("paths without evidence pass as untyped", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task AGGREGATE AVG(hours)"))
		require.NoError(t, err)
		assert.True(t, report.Success)
	})

	t.Run("confidence is always numeric", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task AGGREGATE AVG(confidence)"))
		require.NoError(t, err)
		assert.True(t, report.Success)
	})
}

func TestCompliance(t *testing.T) {
	v := NewValidator(Config{})

	t.Run("score is always within bounds", func(t *testing.T) {
		for _, q := range []string{
			"FIND Task",
			"FIND Task WHERE a = 1",
			"FIND Task WHERE name > 'm' AND done > true FILTER status CONTAINS 'x'",
			"FIND Task GROUP BY status AGGREGATE COUNT(*), SUM(*)",
		} {
			report, err := v.Validate(mustParse(t, q))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, report.Compliance.Score, 0.0, q)
			assert.LessOrEqual(t, report.Compliance.Score, 1.0, q)
		}
	})

	t.Run("zero checks is vacuously compliant", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task"))
		require.NoError(t, err)
		assert.Equal(t, 1.0, report.Compliance.Score)
		assert.Zero(t, report.Compliance.Total)
	})

	t.Run("score reflects the passing fraction", func(t *testing.T) {
		report, err := v.Validate(mustParse(t, "FIND Task WHERE a = 1 AND name > 'm'"))
		require.NoError(t, err)
		assert.Equal(t, 0.5, report.Compliance.Score)
		assert.Equal(t, 1, report.Compliance.Passed)
		assert.Equal(t, 2, report.Compliance.Total)
	})
}

func TestStrictMode(t *testing.T) {
	t.Run("strict returns a typed error on failure", func(t *testing.T) {
		v := NewValidator(Config{Strict: true})
		report, err := v.Validate(mustParse(t, "FIND Task AGGREGATE SUM(*)"))
		require.Error(t, err)
		require.NotNil(t, report, "report accompanies the error")

		var tvErr *TypeValidationError
		require.ErrorAs(t, err, &tvErr)
		assert.True(t, tvErr.IsAggregateFailure())
		assert.False(t, tvErr.First.Passed)
	})

	t.Run("non-strict reports without error", func(t *testing.T) {
		v := NewValidator(Config{})
		report, err := v.Validate(mustParse(t, "FIND Task AGGREGATE SUM(*)"))
		require.NoError(t, err)
		assert.False(t, report.Success)
	})

	t.Run("strict passes clean queries", func(t *testing.T) {
		v := NewValidator(Config{Strict: true})
		_, err := v.Validate(mustParse(t, "FIND Task WHERE a = 1"))
		require.NoError(t, err)
	})
}
