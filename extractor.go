package toolforge

import (
	"encoding/json"
	"maps"

	"github.com/google/jsonschema-go/jsonschema"
)

// Validatable is implemented by argument structs that need business validation
// beyond the schema. It runs after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// Extractor generates the JSON Schema for T and parses arguments against it.
type Extractor[T any] struct {
	schemaMap map[string]any
	resolved  *jsonschema.Resolved
}

// NewExtractor creates an Extractor for type T. When strict is true every
// object in the schema is closed and all properties are required.
func NewExtractor[T any](strict bool) (*Extractor[T], error) {
	schemaMap, resolved, err := generateSchema[T](strict)
	if err != nil {
		return nil, err
	}
	return &Extractor[T]{schemaMap: schemaMap, resolved: resolved}, nil
}

// Schema returns a shallow copy of the JSON Schema (top-level keys only).
func (e *Extractor[T]) Schema() map[string]any {
	return maps.Clone(e.schemaMap)
}

// ParseAndValidate decodes argsJSON, validates it against the schema, then
// unmarshals into T and runs Validatable. Failures are ClientErrors so the
// message can go back to the LLM.
func (e *Extractor[T]) ParseAndValidate(argsJSON []byte) (T, error) {
	var zero T
	var v any
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := e.resolved.Validate(v); err != nil {
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	var args T
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return zero, wrapJSONParseError(err)
	}
	if err := validateCustom(&args); err != nil {
		if IsClientError(err) {
			return zero, err
		}
		return zero, &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return args, nil
}

// validateCustom runs Validatable on *T or T, whichever implements it.
func validateCustom[T any](args *T) error {
	if v, ok := any(args).(Validatable); ok {
		return v.Validate()
	}
	if v, ok := any(*args).(Validatable); ok {
		return v.Validate()
	}
	return nil
}
