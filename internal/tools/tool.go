package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

type Function func(ctx context.Context, input json.RawMessage) (string, error)

type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Function    Function
}

// GenerateSchema reflects an inline object schema for T.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

// Set is an immutable name-indexed collection of tools.
type Set struct {
	defs   []ToolDefinition
	byName map[string]int
}

func NewSet(defs ...ToolDefinition) (*Set, error) {
	s := &Set{byName: make(map[string]int, len(defs))}
	for _, d := range defs {
		if d.Name == "" || d.Function == nil {
			return nil, fmt.Errorf("tool %q is incomplete", d.Name)
		}
		if _, dup := s.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		s.byName[d.Name] = len(s.defs)
		s.defs = append(s.defs, d)
	}
	return s, nil
}

func (s *Set) Get(name string) (ToolDefinition, bool) {
	if s == nil {
		return ToolDefinition{}, false
	}
	i, ok := s.byName[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return s.defs[i], true
}

// List returns the definitions in registration order.
func (s *Set) List() []ToolDefinition {
	if s == nil {
		return nil
	}
	out := make([]ToolDefinition, len(s.defs))
	copy(out, s.defs)
	return out
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// decode unmarshals tool input; an empty payload decodes as {}.
func decode(input json.RawMessage, v any) error {
	if len(bytes.TrimSpace(input)) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
