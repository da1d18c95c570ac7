package graph

import (
	"context"
)

// Op is a pushdown comparison operator. Values mirror the KQL surface.
type Op string

const (
	OpEq       Op = "="
	OpNeq      Op = "!="
	OpContains Op = "CONTAINS"
	OpGt       Op = ">"
	OpLt       Op = "<"
	OpGte      Op = ">="
	OpLte      Op = "<="
)

// Condition is one pushdown predicate: a dot-notation path (as segments),
// an operator, and a scalar value.
type Condition struct {
	Path  []string
	Op    Op
	Value interface{}
}

// Filter is the conjunction of pushdown conditions evaluated store-side
// during the fetch. An empty filter matches everything.
type Filter struct {
	Conditions []Condition
}

// UpsertResult reports the outcome of an atomic concept upsert.
type UpsertResult struct {
	Concept *Concept
	Created bool
}

// Store is the minimal graph-store contract the executor depends on.
// Implementations must make upserts and deletes single atomic operations:
// a failure leaves no partial write. All calls honor ctx cancellation.
type Store interface {
	// FindConcepts fetches concepts with the given label ("*" for any),
	// applying the filter store-side.
	FindConcepts(ctx context.Context, label string, filter Filter) ([]*Concept, error)

	// UpsertConcept resolves a concept by unique name, creating or updating
	// it together with its propositions in one transaction. Propositions
	// are deduplicated by predicate: an existing (concept, predicate) pair
	// is replaced, never duplicated.
	UpsertConcept(ctx context.Context, concept *Concept, props []Proposition) (*UpsertResult, error)

	// DeleteConcepts removes matching concepts and, by cascade, their
	// propositions in one transaction. Returns the number of concepts
	// deleted.
	DeleteConcepts(ctx context.Context, label string, filter Filter) (int64, error)

	// PropositionsFor returns the propositions owned by a concept.
	PropositionsFor(ctx context.Context, conceptID string) ([]*Proposition, error)

	// Labels lists the distinct concept labels present in the store.
	Labels(ctx context.Context) ([]string, error)
}
