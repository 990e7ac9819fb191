package servicenow

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a JSON schema for T and returns it as a plain map
// suitable for tool parameter declarations. Struct fields use json tags for
// property names and jsonschema_description tags for descriptions.
func GenerateSchema[T any](v T) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(v)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}

	// Tool parameter schemas are self-contained; the draft and id markers
	// only confuse model providers.
	delete(out, "$schema")
	delete(out, "$id")

	return out, nil
}

func mustGenerateSchema[T any](v T) map[string]any {
	schema, err := GenerateSchema(v)
	if err != nil {
		panic(err)
	}

	return schema
}
