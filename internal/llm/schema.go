package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// BuildExtractionJSONSchema returns the permissive extraction schema: every
// measurement is a number or null, machineNotes is a list of strings. Unknown
// keys are allowed and ignored on decode.
func BuildExtractionJSONSchema() map[string]any {
	props := map[string]any{
		"machineNotes": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}
	for _, f := range vitals.Fields {
		props[string(f)] = map[string]any{"type": []string{"number", "null"}}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func extractionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = compileSchema(BuildExtractionJSONSchema())
	})
	return compiledSchema, schemaErr
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}
