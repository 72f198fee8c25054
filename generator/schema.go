package generator

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/skosovsky/toolforge"
)

var jsonTypes = map[string]string{
	"str":   "string",
	"int":   "integer",
	"float": "number",
	"bool":  "boolean",
	"list":  "array",
	"dict":  "object",
}

// ParametersSchema describes the argument dict of a generated entry point as
// a JSON Schema object. Inputs typed "any" accept any JSON value.
func ParametersSchema(inputs []Param) (map[string]any, error) {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(inputs)),
	}
	for _, p := range inputs {
		prop := &jsonschema.Schema{Type: jsonTypes[p.Type], Description: p.Description}
		s.Properties[p.Name] = prop
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	if _, err := s.Resolve(nil); err != nil {
		return nil, fmt.Errorf("%w: parameters schema: %w", ErrInvalidSpec, err)
	}
	m, err := toolforge.SchemaMap(s)
	if err != nil {
		return nil, err
	}
	props, _ := m["properties"].(map[string]any)
	for _, p := range inputs {
		if p.Required || p.Default == nil || props == nil {
			continue
		}
		prop, ok := props[p.Name].(map[string]any)
		if !ok {
			prop = map[string]any{}
			props[p.Name] = prop
		}
		prop["default"] = p.Default
	}
	return m, nil
}
