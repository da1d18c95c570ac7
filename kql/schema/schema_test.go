package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	r := NewRegistry()

	t.Run("confidence within bounds passes", func(t *testing.T) {
		result := r.Validate(SchemaProposition, map[string]interface{}{
			"predicate":  "owner",
			"confidence": 0.95,
		})
		assert.True(t, result.Success)
	})

	t.Run("confidence above one fails", func(t *testing.T) {
		result := r.Validate(SchemaProposition, map[string]interface{}{
			"predicate":  "owner",
			"confidence": 1.5,
		})
		require.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, CodeOutOfRange, result.Errors[0].Code)
		assert.Equal(t, "confidence", result.Errors[0].Path)
	})

	t.Run("confidence below zero fails", func(t *testing.T) {
		result := r.Validate(SchemaProposition, map[string]interface{}{
			"predicate":  "owner",
			"confidence": -0.1,
		})
		assert.False(t, result.Success)
	})

	t.Run("missing required field", func(t *testing.T) {
		result := r.Validate(SchemaConcept, map[string]interface{}{"type": "Task"})
		require.False(t, result.Success)
		assert.Equal(t, CodeMissingField, result.Errors[0].Code)
	})

	t.Run("wrong type", func(t *testing.T) {
		result := r.Validate(SchemaConcept, map[string]interface{}{"name": 42})
		require.False(t, result.Success)
		assert.Equal(t, CodeWrongType, result.Errors[0].Code)
	})

	t.Run("unknown schema", func(t *testing.T) {
		result := r.Validate("Nope", map[string]interface{}{})
		require.False(t, result.Success)
		assert.Equal(t, CodeUnknownSchema, result.Errors[0].Code)
	})

	t.Run("undeclared fields are accepted", func(t *testing.T) {
		result := r.Validate(SchemaConcept, map[string]interface{}{
			"name":   "x",
			"custom": []int{1, 2},
		})
		assert.True(t, result.Success)
	})

	t.Run("never mutates input", func(t *testing.T) {
		data := map[string]interface{}{"name": "x", "extra": "y"}
		r.Validate(SchemaConcept, data)
		assert.Equal(t, map[string]interface{}{"name": "x", "extra": "y"}, data)
	})
}

func TestCoerceTypes(t *testing.T) {
	r := NewRegistry()

	t.Run("numeric string coerces deterministically", func(t *testing.T) {
		first, err := r.CoerceTypes(SchemaConcept, map[string]interface{}{"n": "42"})
		require.NoError(t, err)
		assert.Equal(t, float64(42), first["n"])

		second, err := r.CoerceTypes(SchemaConcept, map[string]interface{}{"n": "42"})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("boolean strings coerce where expected", func(t *testing.T) {
		out, err := r.CoerceTypes(SchemaResponse, map[string]interface{}{"ok": "true"})
		require.NoError(t, err)
		assert.Equal(t, true, out["ok"])
	})

	t.Run("declared string fields stay strings", func(t *testing.T) {
		out, err := r.CoerceTypes(SchemaConcept, map[string]interface{}{"name": "42"})
		require.NoError(t, err)
		assert.Equal(t, "42", out["name"])
	})

	t.Run("already typed values pass through", func(t *testing.T) {
		out, err := r.CoerceTypes(SchemaProposition, map[string]interface{}{
			"predicate":  "owner",
			"confidence": 0.5,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.5, out["confidence"])
	})

	t.Run("uncoercible declared value errors", func(t *testing.T) {
		_, err := r.CoerceTypes(SchemaProposition, map[string]interface{}{
			"confidence": "almost certain",
		})
		require.Error(t, err)
	})

	t.Run("no field is dropped", func(t *testing.T) {
		in := map[string]interface{}{"name": "x", "a": "1", "b": "word", "c": true}
		out, err := r.CoerceTypes(SchemaConcept, in)
		require.NoError(t, err)
		assert.Len(t, out, len(in))
		assert.Equal(t, "word", out["b"])
	})
}

func TestRegistry(t *testing.T) {
	t.Run("register bumps version on replace", func(t *testing.T) {
		r := NewRegistry()
		r.Register("Widget", Schema{Fields: map[string]Field{"size": {Type: FieldNumber}}})
		first, ok := r.Get("Widget")
		require.True(t, ok)

		r.Register("Widget", Schema{Fields: map[string]Field{"size": {Type: FieldString}}})
		second, ok := r.Get("Widget")
		require.True(t, ok)
		assert.Greater(t, second.Version, first.Version)
	})

	t.Run("cache miss equals cache hit", func(t *testing.T) {
		cached := NewRegistry(WithCache(NewCache(time.Minute, 128)))
		uncached := NewRegistry(WithCache(NewCache(0, 0)))

		data := map[string]interface{}{"predicate": "p", "confidence": 1.5}
		warm := cached.Validate(SchemaProposition, data)
		hit := cached.Validate(SchemaProposition, data)
		cold := uncached.Validate(SchemaProposition, data)

		assert.Equal(t, warm.Success, hit.Success)
		assert.Equal(t, warm.Errors, hit.Errors)
		assert.Equal(t, warm.Success, cold.Success)
		assert.Equal(t, warm.Errors, cold.Errors)
	})

	t.Run("re-registering invalidates stale cache entries", func(t *testing.T) {
		r := NewRegistry()
		r.Register("Widget", Schema{Fields: map[string]Field{"size": {Type: FieldNumber}}})
		data := map[string]interface{}{"size": "large"}
		require.False(t, r.Validate("Widget", data).Success)

		r.Register("Widget", Schema{Fields: map[string]Field{"size": {Type: FieldString}}})
		assert.True(t, r.Validate("Widget", data).Success, "new version must not serve the old cached result")
	})

	t.Run("loads schemas from yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schemas.yaml")
		content := `
schemas:
  - name: Incident
    fields:
      severity:
        type: number
        required: true
        min: 1
        max: 5
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		r := NewRegistry()
		require.NoError(t, r.LoadFile(path))

		assert.True(t, r.Validate("Incident", map[string]interface{}{"severity": 3.0}).Success)
		assert.False(t, r.Validate("Incident", map[string]interface{}{"severity": 9.0}).Success)
	})
}
