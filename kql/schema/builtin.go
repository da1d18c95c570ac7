package schema

// Built-in schema names.
const (
	SchemaConcept     = "Concept"
	SchemaProposition = "Proposition"
	SchemaQuery       = "Query"
	SchemaResponse    = "Response"
)

func floatPtr(f float64) *float64 { return &f }

// builtinSchemas returns the four schemas every registry starts with.
func builtinSchemas() []Schema {
	return []Schema{
		{
			Name: SchemaConcept,
			Fields: map[string]Field{
				"name":    {Type: FieldString, Required: true},
				"type":    {Type: FieldString},
				"id":      {Type: FieldString},
				"created": {Type: FieldString},
				"updated": {Type: FieldString},
			},
		},
		{
			Name: SchemaProposition,
			Fields: map[string]Field{
				"predicate":  {Type: FieldString, Required: true},
				"object":     {Type: FieldAny},
				"confidence": {Type: FieldNumber, Min: floatPtr(0), Max: floatPtr(1)},
				"source":     {Type: FieldString},
			},
		},
		{
			Name: SchemaQuery,
			Fields: map[string]Field{
				"text":   {Type: FieldString, Required: true},
				"limit":  {Type: FieldNumber, Min: floatPtr(0)},
				"cursor": {Type: FieldString},
			},
		},
		{
			Name: SchemaResponse,
			Fields: map[string]Field{
				"ok":    {Type: FieldBoolean, Required: true},
				"data":  {Type: FieldAny},
				"error": {Type: FieldAny},
			},
		},
	}
}
