package script

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the exported document schema.
const SchemaID = "https://github.com/ormasoftchile/archetype/schemas/archetype-v1.json"

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the archetype/v1 Document types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Document{})
	s.ID = SchemaID
	s.Title = "Archetype script (archetype/v1)"
	s.Description = "Schema for archetype/v1 script YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal script schema: %w", err)
	}
	return data, nil
}
