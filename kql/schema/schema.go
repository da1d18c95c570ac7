// Package schema provides the registry and structural type system backing
// KQL validation and coercion.
//
// A Registry holds named schemas (Concept, Proposition, Query, Response are
// built in), validates arbitrary data against them, and coerces loosely
// typed input to canonical types. The registry is an explicit object with a
// defined lifecycle; there is no package-level singleton.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kestreldb/kestrel/errors"
)

// FieldType names a primitive constraint for a schema field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldAny     FieldType = "any"
)

// Field declares type and constraints for one schema field.
type Field struct {
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Min      *float64  `yaml:"min" json:"min,omitempty"` // numeric lower bound, inclusive
	Max      *float64  `yaml:"max" json:"max,omitempty"` // numeric upper bound, inclusive
}

// Schema is a named set of field constraints. Unknown fields are accepted;
// validation is structural over the declared fields only.
type Schema struct {
	Name    string           `yaml:"name" json:"name"`
	Version int              `yaml:"-" json:"version"`
	Fields  map[string]Field `yaml:"fields" json:"fields"`
}

// FieldError describes one failed validation check.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Result is the outcome of validating data against a schema.
// Data is the input as given; validation never mutates it.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Errors  []FieldError           `json:"errors,omitempty"`
}

// Validation error codes.
const (
	CodeMissingField  = "MISSING_FIELD"
	CodeWrongType     = "WRONG_TYPE"
	CodeOutOfRange    = "OUT_OF_RANGE"
	CodeUnknownSchema = "UNKNOWN_SCHEMA"
)

// validate checks data structurally against the schema.
func (s *Schema) validate(data map[string]interface{}) Result {
	var errs []FieldError

	for name, field := range s.Fields {
		value, present := data[name]
		if !present {
			if field.Required {
				errs = append(errs, FieldError{
					Path:    name,
					Message: fmt.Sprintf("required field %q is missing", name),
					Code:    CodeMissingField,
				})
			}
			continue
		}
		errs = append(errs, checkField(name, field, value)...)
	}

	if len(errs) > 0 {
		return Result{Success: false, Errors: errs}
	}
	return Result{Success: true, Data: data}
}

// checkField validates a single value against its field constraints.
func checkField(name string, field Field, value interface{}) []FieldError {
	var errs []FieldError

	switch field.Type {
	case FieldString:
		if _, ok := value.(string); !ok {
			errs = append(errs, FieldError{
				Path:    name,
				Message: fmt.Sprintf("field %q must be a string, got %T", name, value),
				Code:    CodeWrongType,
			})
		}
	case FieldNumber:
		n, ok := asNumber(value)
		if !ok {
			errs = append(errs, FieldError{
				Path:    name,
				Message: fmt.Sprintf("field %q must be a number, got %T", name, value),
				Code:    CodeWrongType,
			})
			break
		}
		if field.Min != nil && n < *field.Min {
			errs = append(errs, FieldError{
				Path:    name,
				Message: fmt.Sprintf("field %q must be >= %g, got %g", name, *field.Min, n),
				Code:    CodeOutOfRange,
			})
		}
		if field.Max != nil && n > *field.Max {
			errs = append(errs, FieldError{
				Path:    name,
				Message: fmt.Sprintf("field %q must be <= %g, got %g", name, *field.Max, n),
				Code:    CodeOutOfRange,
			})
		}
	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			errs = append(errs, FieldError{
				Path:    name,
				Message: fmt.Sprintf("field %q must be a boolean, got %T", name, value),
				Code:    CodeWrongType,
			})
		}
	case FieldAny:
		// Anything goes.
	}

	return errs
}

// asNumber accepts the numeric shapes JSON decoding and Go literals produce.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// coerce returns a deep-copied map with string values converted to the
// schema's expected type where the conversion is lossless. Already-typed
// values pass through untouched; no field is ever dropped. Fields the
// schema does not declare are coerced best-effort: numeric-looking strings
// become numbers and "true"/"false" become booleans, anything else passes
// through unchanged.
func (s *Schema) coerce(data map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		field, declared := s.Fields[k]
		if !declared {
			out[k] = coerceLoose(v)
			continue
		}

		str, isString := v.(string)
		if !isString {
			out[k] = v
			continue
		}

		switch field.Type {
		case FieldNumber:
			if n, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				out[k] = n
				continue
			}
			return nil, errors.Newf("field %q: cannot coerce %q to number", k, str)
		case FieldBoolean:
			switch strings.ToLower(strings.TrimSpace(str)) {
			case "true":
				out[k] = true
				continue
			case "false":
				out[k] = false
				continue
			}
			return nil, errors.Newf("field %q: cannot coerce %q to boolean", k, str)
		default:
			out[k] = v
		}
	}
	return out, nil
}

// coerceLoose converts a string to the primitive it spells when that
// conversion is unambiguous. Non-strings and unparseable strings pass
// through as given.
func coerceLoose(v interface{}) interface{} {
	str, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(str)
	switch trimmed {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil && trimmed != "" {
		return n
	}
	return v
}
