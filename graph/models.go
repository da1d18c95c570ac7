// Package graph defines the Concept-Proposition data model and the store
// contract the query executor runs against.
package graph

import (
	"time"
)

// Reserved concept property keys. These map to columns, not to the JSON
// properties blob, and are never materialized as propositions.
const (
	KeyName    = "name"
	KeyType    = "type"
	KeyID      = "id"
	KeyCreated = "created"
	KeyUpdated = "updated"
)

// Concept is a named knowledge entity. Name is unique across all concepts;
// upsert by name is idempotent.
type Concept struct {
	ID         string                 `db:"id" json:"id"`
	Name       string                 `db:"name" json:"name"`
	Label      string                 `db:"label" json:"type"` // classification, e.g. Task, Policy
	Properties map[string]interface{} `db:"properties" json:"properties,omitempty"`
	CreatedAt  time.Time              `db:"created_at" json:"created"`
	UpdatedAt  time.Time              `db:"updated_at" json:"updated"`
}

// Row flattens the concept into the dynamically typed row shape the
// executor filters, groups and aggregates over. Core fields sit beside the
// nested property structure.
func (c *Concept) Row() map[string]interface{} {
	row := make(map[string]interface{}, len(c.Properties)+5)
	for k, v := range c.Properties {
		row[k] = v
	}
	row[KeyName] = c.Name
	row[KeyType] = c.Label
	row[KeyID] = c.ID
	row[KeyCreated] = c.CreatedAt.UTC().Format(time.RFC3339)
	row[KeyUpdated] = c.UpdatedAt.UTC().Format(time.RFC3339)
	return row
}

// Proposition is a typed fact owned by exactly one concept. Confidence is
// constrained to [0,1] at validation; propositions are deduplicated by
// predicate within their owning concept.
type Proposition struct {
	ID         string      `db:"id" json:"id"`
	ConceptID  string      `db:"concept_id" json:"concept_id"`
	Predicate  string      `db:"predicate" json:"predicate"`
	Object     interface{} `db:"object" json:"object"`
	Confidence float64     `db:"confidence" json:"confidence"`
	Source     string      `db:"source" json:"source,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
