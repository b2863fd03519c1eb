package config

import (
	"fmt"

	"github.com/grovetools/marksync/schema"
)

// SchemaValidator validates raw settings documents against the reflected schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator generates the settings schema and compiles it.
func NewSchemaValidator() (*SchemaValidator, error) {
	schemaJSON, err := GenerateSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to generate settings schema: %w", err)
	}
	validator, err := schema.NewValidator(SchemaID, schemaJSON)
	if err != nil {
		return nil, err
	}
	return &SchemaValidator{validator: validator}, nil
}

// Validate validates a decoded settings document against the schema.
func (v *SchemaValidator) Validate(doc interface{}) error {
	return v.validator.Validate(doc)
}
