package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaValidator structurally validates model responses against a
// kin-openapi schema object before the curator trusts them as typed data
// (spec §4.5's output schema validation, §7's invalid-model-output class).
type SchemaValidator struct{}

// NewSchemaValidator returns a SchemaValidator. It holds no state; it
// exists so call sites read like the rest of the package's constructors and
// so a future cache of compiled schemas has somewhere to live.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate checks raw against schema, never against a live network
// resource, so it never requires a context for anything beyond the
// standard library call signature kin-openapi expects.
func (v *SchemaValidator) Validate(schema *openapi3.Schema, raw json.RawMessage) error {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	if err := schema.VisitJSON(value); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}

// ValidateContext is Validate with a context parameter, for schema
// constructs that require context (remote $ref resolution). The curator
// never uses remote refs, so this simply threads ctx through unused; kept
// for parity with kin-openapi's context-aware visit functions.
func (v *SchemaValidator) ValidateContext(ctx context.Context, schema *openapi3.Schema, raw json.RawMessage) error {
	return v.Validate(schema, raw)
}
