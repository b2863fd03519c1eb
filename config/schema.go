package config

//go:generate go run ../tools/schema-generator -o ../schema/marksync.schema.json

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID is the resource name the settings schema is compiled under.
const SchemaID = "marksync.schema.json"

// GenerateSchema reflects the Settings struct into a JSON Schema.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	schema := r.Reflect(&Settings{})
	schema.Title = "marksync settings"
	schema.Description = "Daemon settings for marksync (marksync.yml)."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
