package http

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schemas for the documents a resource server sends. Amounts are decimal strings
// in the asset's smallest unit; a JSON number is a wrong shape.
const (
	paymentRequiredV2Schema = `{
		"type": "object",
		"required": ["x402Version", "accepts"],
		"properties": {
			"x402Version": {"enum": [2]},
			"error": {"type": "string"},
			"resource": {
				"type": "object",
				"properties": {
					"url": {"type": "string"},
					"description": {"type": "string"},
					"mimeType": {"type": "string"}
				}
			},
			"accepts": {"type": "array", "minItems": 1, "items": {"type": "object"}}
		}
	}`

	paymentRequiredV1Schema = `{
		"type": "object",
		"required": ["x402Version", "accepts"],
		"properties": {
			"x402Version": {"enum": [1]},
			"error": {"type": "string"},
			"accepts": {"type": "array", "minItems": 1, "items": {"type": "object"}}
		}
	}`

	requirementsV2Schema = `{
		"type": "object",
		"required": ["scheme", "network", "amount", "payTo"],
		"properties": {
			"scheme": {"type": "string", "minLength": 1},
			"network": {"type": "string", "minLength": 1},
			"amount": {"type": "string", "pattern": "^-?[0-9]+$"},
			"asset": {"type": "string"},
			"payTo": {"type": "string", "minLength": 1},
			"maxTimeoutSeconds": {"type": "integer", "minimum": 0},
			"extra": {"type": "object"}
		}
	}`

	requirementsV1Schema = `{
		"type": "object",
		"required": ["scheme", "network", "maxAmountRequired", "payTo"],
		"properties": {
			"scheme": {"type": "string", "minLength": 1},
			"network": {"type": "string", "minLength": 1},
			"maxAmountRequired": {"type": "string", "pattern": "^-?[0-9]+$"},
			"resource": {"type": "string"},
			"description": {"type": "string"},
			"asset": {"type": "string"},
			"payTo": {"type": "string", "minLength": 1},
			"maxTimeoutSeconds": {"type": "integer", "minimum": 0},
			"extra": {"type": "object"}
		}
	}`

	settleResponseSchema = `{
		"type": "object",
		"properties": {
			"success": {"type": "boolean"},
			"settled": {"type": "boolean"},
			"transaction": {"type": "string"},
			"txHash": {"type": "string"},
			"network": {"type": "string"},
			"payer": {"type": "string"},
			"amount": {"type": "string", "pattern": "^[0-9]+$"},
			"errorReason": {"type": "string"}
		}
	}`
)

var (
	paymentRequiredV2 = mustSchema(paymentRequiredV2Schema)
	paymentRequiredV1 = mustSchema(paymentRequiredV1Schema)
	requirementsV2    = mustSchema(requirementsV2Schema)
	requirementsV1    = mustSchema(requirementsV1Schema)
	settleResponse    = mustSchema(settleResponseSchema)
)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return schema
}

// validateDocument checks data against schema and returns a single error listing every violation
func validateDocument(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return fmt.Errorf("%s", strings.Join(errors, "; "))
}
