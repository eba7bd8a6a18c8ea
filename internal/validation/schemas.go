// Package validation checks outgoing JSON documents against the embedded
// JSON schemas of the public API and the recompute event stream.
package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	SchemaRecommendationResponse = "recommendation-response"
	SchemaSimilarResponse        = "similar-response"
	SchemaPopularResponse        = "popular-response"
	SchemaRecomputeResult        = "recompute-result"
	SchemaRecomputeEvent         = "recompute-event"
	SchemaErrorResponse          = "error-response"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaValidator holds the compiled schemas, keyed by file name without
// extension.
type SchemaValidator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaValidator compiles every embedded schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	sv := &SchemaValidator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
		}
		sv.schemas[name] = schema
	}

	return sv, nil
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", ve.Field, ve.Message)
}

// Err folds a failed result into one error, or returns nil.
func (vr *ValidationResult) Err() error {
	if vr.Valid {
		return nil
	}
	msgs := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("document does not match schema: %s", strings.Join(msgs, "; "))
}

// ValidateJSON validates raw JSON bytes against schemaName.
func (sv *SchemaValidator) ValidateJSON(schemaName string, data []byte) *ValidationResult {
	return sv.validate(schemaName, gojsonschema.NewBytesLoader(data))
}

// ValidateStruct marshals data and validates the result against schemaName.
func (sv *SchemaValidator) ValidateStruct(schemaName string, data interface{}) *ValidationResult {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return invalid("data", fmt.Sprintf("Failed to marshal data to JSON: %v", err), "JSON_MARSHAL_ERROR")
	}
	return sv.ValidateJSON(schemaName, jsonBytes)
}

// SchemaExists checks if a schema with the given name is loaded
func (sv *SchemaValidator) SchemaExists(name string) bool {
	_, exists := sv.schemas[name]
	return exists
}

func (sv *SchemaValidator) validate(schemaName string, document gojsonschema.JSONLoader) *ValidationResult {
	schema, ok := sv.schemas[schemaName]
	if !ok {
		return invalid("schema", fmt.Sprintf("Schema '%s' not found", schemaName), "SCHEMA_NOT_FOUND")
	}

	result, err := schema.Validate(document)
	if err != nil {
		return invalid("validation", fmt.Sprintf("Validation error: %v", err), "VALIDATION_ERROR")
	}

	validationResult := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		validationResult.Errors = append(validationResult.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    "VALIDATION_ERROR",
		})
	}
	return validationResult
}

func invalid(field, message, code string) *ValidationResult {
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Field: field, Message: message, Code: code}},
	}
}
