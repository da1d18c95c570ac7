// SQLite-backed implementation of the graph store. Handles persistence,
// JSON serialization of concept properties and proposition objects, and
// query construction via the pushdown builder.
package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestreldb/kestrel/errors"
)

// Query constants
const (
	conceptSelectByNameQuery = `
		SELECT id, name, label, properties, created_at, updated_at
		FROM concepts WHERE name = ?`

	conceptInsertQuery = `
		INSERT INTO concepts (id, name, label, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	conceptUpdateQuery = `
		UPDATE concepts SET label = ?, properties = ?, updated_at = ?
		WHERE id = ?`

	propositionUpsertQuery = `
		INSERT INTO propositions (id, concept_id, predicate, object, confidence, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(concept_id, predicate)
		DO UPDATE SET object = excluded.object, confidence = excluded.confidence, source = excluded.source`

	propositionSelectQuery = `
		SELECT id, concept_id, predicate, object, confidence, source, created_at
		FROM propositions WHERE concept_id = ? ORDER BY predicate`

	labelsQuery = `SELECT DISTINCT label FROM concepts ORDER BY label`
)

// SQLStore implements the Store interface with a SQLite backend.
type SQLStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLStore creates a new SQL-backed concept store. Logger may be nil.
func NewSQLStore(db *sql.DB, logger *zap.SugaredLogger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

// FindConcepts fetches concepts by label with the filter pushed into the
// SQL WHERE clause.
func (s *SQLStore) FindConcepts(ctx context.Context, label string, filter Filter) ([]*Concept, error) {
	qb := &queryBuilder{}
	qb.buildLabelFilter(label)
	if err := qb.buildConditionFilters(filter); err != nil {
		return nil, errors.Wrap(err, "build pushdown filter")
	}

	query := `SELECT id, name, label, properties, created_at, updated_at FROM concepts WHERE ` +
		qb.build() + ` ORDER BY name`

	if s.logger != nil {
		s.logger.Debugw("executing concept fetch",
			"label", label,
			"conditions", len(filter.Conditions),
		)
	}

	rows, err := s.db.QueryContext(ctx, query, qb.args...)
	if err != nil {
		return nil, errors.Wrap(err, "query concepts")
	}
	defer rows.Close()

	var concepts []*Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate concepts")
	}
	return concepts, nil
}

// UpsertConcept resolves by unique name inside a single transaction:
// match-or-create, never duplicate-create. Propositions ride in the same
// transaction and replace existing predicates.
func (s *SQLStore) UpsertConcept(ctx context.Context, concept *Concept, props []Proposition) (*UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin upsert tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	existing, err := selectConceptByName(ctx, tx, concept.Name)
	if err != nil {
		return nil, errors.Wrap(err, "resolve concept by name")
	}

	created := existing == nil
	result := &Concept{
		Name:       concept.Name,
		Label:      concept.Label,
		Properties: concept.Properties,
	}

	if created {
		result.ID = uuid.NewString()
		result.CreatedAt = now
		result.UpdatedAt = now

		propsJSON, err := json.Marshal(result.Properties)
		if err != nil {
			return nil, errors.Wrap(err, "marshal properties")
		}
		if _, err := tx.ExecContext(ctx, conceptInsertQuery,
			result.ID, result.Name, result.Label, string(propsJSON), result.CreatedAt, result.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "insert concept")
		}
	} else {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
		result.UpdatedAt = now
		if result.Label == "" {
			result.Label = existing.Label
		}
		result.Properties = mergeProperties(existing.Properties, concept.Properties)

		propsJSON, err := json.Marshal(result.Properties)
		if err != nil {
			return nil, errors.Wrap(err, "marshal properties")
		}
		if _, err := tx.ExecContext(ctx, conceptUpdateQuery,
			result.Label, string(propsJSON), result.UpdatedAt, result.ID,
		); err != nil {
			return nil, errors.Wrap(err, "update concept")
		}
	}

	for _, prop := range props {
		objectJSON, err := json.Marshal(prop.Object)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal proposition object for %s", prop.Predicate)
		}
		if _, err := tx.ExecContext(ctx, propositionUpsertQuery,
			uuid.NewString(), result.ID, prop.Predicate, string(objectJSON),
			prop.Confidence, prop.Source, now,
		); err != nil {
			return nil, errors.Wrapf(err, "upsert proposition %s", prop.Predicate)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit upsert")
	}

	if s.logger != nil {
		s.logger.Debugw("concept upserted",
			"name", result.Name,
			"label", result.Label,
			"created", created,
			"propositions", len(props),
		)
	}
	return &UpsertResult{Concept: result, Created: created}, nil
}

// DeleteConcepts removes matching concepts in one transaction. Owned
// propositions go with them via the ON DELETE CASCADE foreign key.
func (s *SQLStore) DeleteConcepts(ctx context.Context, label string, filter Filter) (int64, error) {
	qb := &queryBuilder{}
	qb.buildLabelFilter(label)
	if err := qb.buildConditionFilters(filter); err != nil {
		return 0, errors.Wrap(err, "build pushdown filter")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin delete tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM concepts WHERE `+qb.build(), qb.args...)
	if err != nil {
		return 0, errors.Wrap(err, "delete concepts")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "count deleted concepts")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit delete")
	}

	if s.logger != nil {
		s.logger.Infow("concepts deleted",
			"label", label,
			"deleted", deleted,
		)
	}
	return deleted, nil
}

// PropositionsFor returns the propositions owned by a concept.
func (s *SQLStore) PropositionsFor(ctx context.Context, conceptID string) ([]*Proposition, error) {
	rows, err := s.db.QueryContext(ctx, propositionSelectQuery, conceptID)
	if err != nil {
		return nil, errors.Wrap(err, "query propositions")
	}
	defer rows.Close()

	var props []*Proposition
	for rows.Next() {
		var p Proposition
		var objectJSON string
		var source sql.NullString
		if err := rows.Scan(&p.ID, &p.ConceptID, &p.Predicate, &objectJSON, &p.Confidence, &source, &p.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan proposition")
		}
		if err := json.Unmarshal([]byte(objectJSON), &p.Object); err != nil {
			return nil, errors.Wrapf(err, "unmarshal proposition object %s", p.ID)
		}
		p.Source = source.String
		props = append(props, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate propositions")
	}
	return props, nil
}

// Labels lists the distinct concept labels present in the store.
func (s *SQLStore) Labels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, labelsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query labels")
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, errors.Wrap(err, "scan label")
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConcept(scanner rowScanner) (*Concept, error) {
	var c Concept
	var propsJSON string
	if err := scanner.Scan(&c.ID, &c.Name, &c.Label, &propsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &c.Properties); err != nil {
			return nil, errors.Wrapf(err, "unmarshal properties for concept %s", c.ID)
		}
	}
	return &c, nil
}

func selectConceptByName(ctx context.Context, tx *sql.Tx, name string) (*Concept, error) {
	row := tx.QueryRowContext(ctx, conceptSelectByNameQuery, name)
	c, err := scanConcept(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// mergeProperties overlays incoming keys onto the existing property tree,
// merging nested maps key by key so partial dot-notation writes do not
// clobber sibling values.
func mergeProperties(existing, incoming map[string]interface{}) map[string]interface{} {
	if existing == nil {
		return incoming
	}
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		prevMap, prevOK := merged[k].(map[string]interface{})
		nextMap, nextOK := v.(map[string]interface{})
		if prevOK && nextOK {
			merged[k] = mergeProperties(prevMap, nextMap)
			continue
		}
		merged[k] = v
	}
	return merged
}
