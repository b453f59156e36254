// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Request schemas for the two write-path surfaces. trigger_type, frequency
// and openai_model are closed sets; the schedule/trigger_type invariant is
// enforced by the create schema so a webhook template can never carry a
// schedule.
const (
	ExecuteWebhookSchema = `{
		"type": "object",
		"properties": {
			"template_id": {"type": "integer", "minimum": 1},
			"payload": {"type": "object"}
		},
		"required": ["template_id"],
		"additionalProperties": false
	}`

	CreateTemplateSchema = `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"template_content": {"type": "string", "minLength": 1},
			"openai_model": {"enum": ["gpt-4", "gpt-4-turbo", "gpt-3.5-turbo", "gpt-3.5-turbo-16k"]},
			"trigger_type": {"enum": ["scheduled", "webhook"]},
			"schedule": {
				"type": ["object", "null"],
				"properties": {
					"frequency": {"enum": ["hourly", "daily", "weekly"]}
				},
				"required": ["frequency"],
				"additionalProperties": false
			},
			"webhook_url": {"type": ["string", "null"], "format": "uri"},
			"destination_webhook_url": {"type": "string", "format": "uri"},
			"user_id": {"type": "integer", "minimum": 1}
		},
		"required": ["name", "template_content", "trigger_type", "destination_webhook_url", "user_id"],
		"allOf": [
			{
				"if": {"properties": {"trigger_type": {"const": "scheduled"}}},
				"then": {"required": ["schedule"], "properties": {"schedule": {"type": "object"}}}
			},
			{
				"if": {"properties": {"trigger_type": {"const": "webhook"}}},
				"then": {"properties": {"schedule": {"type": "null"}}}
			}
		]
	}`
)

// Validator holds a compiled JSON schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the given schema document.
func NewValidator(schemaJSON string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// MustValidator compiles a schema known at build time and panics on failure.
func MustValidator(schemaJSON string) *Validator {
	v, err := NewValidator(schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateBytes checks a raw JSON document against the schema and returns one
// message per violation.
func (v *Validator) ValidateBytes(doc []byte) ([]string, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return msgs, nil
}
