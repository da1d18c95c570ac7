package executor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kestreldb/kestrel/graph"
	"github.com/kestreldb/kestrel/kql/ast"
	"github.com/kestreldb/kestrel/kql/schema"
)

// ValidationError aborts an upsert before any store write. It carries the
// failed field checks from schema validation.
type ValidationError struct {
	Schema string
	Errors []schema.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("validation against schema %s failed", e.Schema)
	}
	return fmt.Sprintf("validation against schema %s failed: %s", e.Schema, e.Errors[0].Message)
}

// Upserter resolves match-or-create semantics for concepts: coerce the
// object literal, validate it, split dotted keys into nested property
// writes, materialize non-core scalars as propositions, and hand the whole
// thing to the store as one atomic operation.
type Upserter struct {
	store    graph.Store
	registry *schema.Registry
	logger   *zap.SugaredLogger
}

// NewUpserter creates an upsert engine backed by the given store and
// schema registry.
func NewUpserter(store graph.Store, registry *schema.Registry, logger *zap.SugaredLogger) *Upserter {
	return &Upserter{store: store, registry: registry, logger: logger}
}

// Upsert executes an UPSERT query. The concept is resolved by unique name;
// a second call with the same name updates rather than duplicates.
func (u *Upserter) Upsert(ctx context.Context, q *ast.Query) (*graph.UpsertResult, error) {
	data := make(map[string]interface{}, len(q.Object))
	for key, lit := range q.Object {
		data[key] = lit.Value()
	}

	// Coerce against the target's schema when one is registered, otherwise
	// against the generic Concept schema.
	schemaName := schema.SchemaConcept
	if _, ok := u.registry.Get(q.Target); ok {
		schemaName = q.Target
	}
	coerced, err := u.registry.CoerceTypes(schemaName, data)
	if err != nil {
		return nil, &ValidationError{Schema: schemaName, Errors: []schema.FieldError{{
			Path:    "",
			Message: err.Error(),
			Code:    schema.CodeWrongType,
		}}}
	}

	if result := u.registry.Validate(schemaName, coerced); !result.Success {
		return nil, &ValidationError{Schema: schemaName, Errors: result.Errors}
	}
	if schemaName != schema.SchemaConcept {
		// The target schema constrains domain fields; the concept contract
		// (unique string name) still applies.
		if result := u.registry.Validate(schema.SchemaConcept, coerced); !result.Success {
			return nil, &ValidationError{Schema: schema.SchemaConcept, Errors: result.Errors}
		}
	}

	name, _ := coerced[graph.KeyName].(string)
	concept := &graph.Concept{
		Name:       name,
		Label:      q.Target,
		Properties: make(map[string]interface{}),
	}

	var props []graph.Proposition
	for key, value := range coerced {
		segments := strings.Split(key, ".")
		if len(segments) == 1 && reservedKey(key) {
			continue
		}
		setPath(concept.Properties, segments, value)

		if scalar(value) {
			props = append(props, graph.Proposition{
				Predicate:  key,
				Object:     value,
				Confidence: 1.0,
			})
		}
	}

	upserted, err := u.store.UpsertConcept(ctx, concept, props)
	if err != nil {
		return nil, &ExecutionError{Cause: err, Timeout: ctx.Err() == context.DeadlineExceeded}
	}

	if u.logger != nil {
		u.logger.Infow("Upserted concept",
			"name", name,
			"label", q.Target,
			"created", upserted.Created,
			"propositions", len(props),
		)
	}
	return upserted, nil
}

// reservedKey reports whether a top-level key maps to a core concept field
// rather than the properties document.
func reservedKey(key string) bool {
	switch key {
	case graph.KeyName, graph.KeyType, graph.KeyID, graph.KeyCreated, graph.KeyUpdated:
		return true
	}
	return false
}

// scalar reports whether a value is a primitive worth materializing as a
// standalone proposition.
func scalar(v interface{}) bool {
	switch v.(type) {
	case string, float64, float32, int, int64, bool:
		return true
	}
	return false
}
