package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled JSON schema used to validate step and subject args.
type Schema struct {
	source   string
	compiled *jsonschema.Schema
}

// NewSchema compiles the given JSON schema document.
func NewSchema(source string) (*Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("api: parse schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("api: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("api: compile schema: %w", err)
	}
	return &Schema{source: source, compiled: compiled}, nil
}

// MustSchema is like NewSchema but panics on a bad document. Intended for
// schema literals declared by step and subject implementations.
func MustSchema(source string) *Schema {
	s, err := NewSchema(source)
	if err != nil {
		panic(err)
	}
	return s
}

// Source returns the schema's JSON document.
func (s *Schema) Source() string {
	return s.source
}

// Validate checks args against the schema. The args map is normalized
// through JSON so numeric types validate consistently.
func (s *Schema) Validate(args map[string]any) error {
	if s == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("api: encode args: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("api: decode args: %w", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return &InvalidValueError{Field: "args", Value: err.Error()}
	}
	return nil
}
