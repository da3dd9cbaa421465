package roadmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResponseSchema is the shape the model is asked to return. It is embedded
// into the system instruction and used to check the response envelope.
// Item-level rules are enforced by Validate so failures can name an index.
func ResponseSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"week":        map[string]any{"type": "integer", "minimum": 1},
			"title":       map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
			"resources":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"week", "title", "description", "resources"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"roadmap": map[string]any{"type": "array", "items": item},
		},
		"required": []string{"roadmap"},
	}
}

// envelopeSchema only requires an object with a roadmap array.
func envelopeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"roadmap": map[string]any{"type": "array"},
		},
		"required": []string{"roadmap"},
	}
}

var (
	envelopeOnce sync.Once
	envelope     *jsonschema.Schema
	envelopeErr  error
)

func compiledEnvelope() (*jsonschema.Schema, error) {
	envelopeOnce.Do(func() {
		envelope, envelopeErr = compile("roadmap-envelope.json", envelopeSchema())
	})
	return envelope, envelopeErr
}

func compile(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}
