// internal/schema/validator.go
// Package schema provides JSON schema validation for write payloads.
// It ensures admin product writes and board submissions conform to their
// schemas before anything touches storage.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Payload names known to the validator.
const (
	PayloadProductSave   = "market.product.save"   // Admin create/update product
	PayloadRequestSubmit = "market.request.submit" // Community board submission
)

// Validator validates write payloads against JSON schemas.
// Schemas are embedded and compiled once at startup.
type Validator struct {
	schemas map[string]*gojsonschema.Schema // Map of payload names to compiled schemas
}

// NewValidator creates a new schema validator with all payload schemas
// compiled.
// Returns:
//   - *Validator: Initialized validator instance
//   - error: Any error that occurred during initialization
func NewValidator() (*Validator, error) {
	v := &Validator{
		schemas: make(map[string]*gojsonschema.Schema),
	}

	if err := v.loadSchemas(); err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	return v, nil
}

// loadSchemas compiles the embedded payload schemas.
func (v *Validator) loadSchemas() error {
	// Product save schema - the admin editor write payload. The category
	// enum mirrors the storefront sections; price and rating are bounded.
	productSchema := `{
		"type": "object",
		"required": ["title", "category", "fileUrl"],
		"properties": {
			"id": {"type": "string"},
			"title": {"type": "string", "minLength": 1, "maxLength": 200},
			"description": {"type": "string", "maxLength": 10000},
			"price": {"type": "number", "minimum": 0},
			"category": {"type": "string", "enum": ["E-books", "Courses", "Video Assets", "Graphics", "Development", "Other"]},
			"imageUrl": {"type": "string"},
			"additionalImages": {"type": "array", "items": {"type": "string"}},
			"fileUrl": {"type": "string", "minLength": 1},
			"fileType": {"type": "string", "maxLength": 64},
			"fileSize": {"type": "string", "maxLength": 64},
			"isFree": {"type": "boolean"},
			"badgeText": {"type": "string", "maxLength": 40},
			"rating": {"type": "number", "minimum": 0, "maximum": 5},
			"modules": {"type": "array", "items": {
				"type": "object",
				"required": ["id", "title", "lessons"],
				"properties": {
					"id": {"type": "string"},
					"title": {"type": "string"},
					"lessons": {"type": "array", "items": {
						"type": "object",
						"required": ["id", "title"],
						"properties": {
							"id": {"type": "string"},
							"title": {"type": "string"},
							"videoUrl": {"type": "string"},
							"duration": {"type": "string"},
							"content": {"type": "string"}
						}
					}}
				}
			}}
		}
	}`
	if err := v.loadSchema(PayloadProductSave, productSchema); err != nil {
		return fmt.Errorf("failed to load product schema: %w", err)
	}

	// Request submit schema - the community board payload
	requestSchema := `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title": {"type": "string", "maxLength": 200},
			"description": {"type": "string", "maxLength": 5000},
			"category": {"type": "string", "maxLength": 64}
		}
	}`
	if err := v.loadSchema(PayloadRequestSubmit, requestSchema); err != nil {
		return fmt.Errorf("failed to load request schema: %w", err)
	}

	return nil
}

// loadSchema compiles a single schema.
// Parameters:
//   - name: The payload name (e.g., "market.product.save")
//   - schemaJSON: The JSON schema as a string
// Returns:
//   - error: Any error that occurred during schema loading
func (v *Validator) loadSchema(name, schemaJSON string) error {
	loader := gojsonschema.NewStringLoader(schemaJSON)

	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", name, err)
	}

	v.schemas[name] = schema
	return nil
}

// Validate validates a payload against its schema.
// Parameters:
//   - name: The payload name (e.g., "market.product.save")
//   - payload: The payload to validate, marshaled to JSON internally
// Returns:
//   - error: nil if valid, error with details if invalid
func (v *Validator) Validate(name string, payload any) error {
	schema, exists := v.schemas[name]
	if !exists {
		return fmt.Errorf("schema not found for payload: %s", name)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payloadJSON))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
