package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID is the identifier the generated schema is compiled under.
const SchemaID = "lore.schema.json"

// GenerateSchema generates the JSON Schema for lore.yml. Top-level keys
// outside the known sections are allowed so extensions such as "logging" can
// live in the same file; the known sections themselves are strict.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Expand struct references instead of using $ref for cleaner base schema.
		ExpandedStruct: true,
		DoNotReference: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
		// Every field is optional; defaults fill the gaps.
		RequiredFromJSONSchemaTags: true,
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Lore Configuration"
	schema.Description = "Schema for lore.yml"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.AdditionalProperties = jsonschema.TrueSchema

	return json.MarshalIndent(schema, "", "  ")
}
