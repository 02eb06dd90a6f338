// Package llm provides the curator's single point of contact with language
// models: a provider-agnostic Client, an Anthropic-backed primary provider,
// a Bedrock-backed fallback, and circuit breaking around both so a flapping
// upstream degrades the pipeline instead of cascading into it.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// ModelID identifies a model a provider understands, e.g.
// "claude-sonnet-4-5" or a Bedrock inference profile ARN.
type ModelID string

// RateLimitError is returned by a Provider when the upstream signals
// backpressure (HTTP 429 or equivalent), so the workflow runtime can back
// off distinctly from other transient failures (spec §6.1, §7.1).
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm: %s rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Request is one completion call's input (spec §6.1's complete contract).
type Request struct {
	Model  ModelID
	System string
	User   string
	// Schema, if non-nil, is enforced on the response: the provider is
	// instructed to emit JSON matching it, and the result is validated
	// structurally before being returned.
	Schema *openapi3.Schema
}

// Provider is one backend capable of serving a completion request.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// Client is the curator's model-agnostic entry point. It is the `complete`
// interface from spec §6.1, with primary/fallback resolution and schema
// validation layered on top of whichever Provider actually serves the call.
type Client interface {
	// Complete returns parsed JSON (validated against req.Schema, when set)
	// or raw text in the "text" field of the returned map otherwise.
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// client is the default Client: try primary, fall back to secondary on any
// error (including rate limiting and circuit-open), per spec §4.6's writer
// model-selection rule generalized to every call site.
type client struct {
	primary   Provider
	fallback  Provider
	validator *SchemaValidator
}

// New builds a Client that attempts primary first and falls back to
// fallback on error. fallback may be nil, in which case primary failures
// propagate directly.
func New(primary, fallback Provider) Client {
	return &client{primary: primary, fallback: fallback, validator: NewSchemaValidator()}
}

func (c *client) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("llm: encode response schema: %w", err)
		}
		req.System += "\n\nRespond with JSON only, matching this JSON schema:\n" + string(schemaJSON)
	}
	raw, err := c.primary.Complete(ctx, req)
	if err != nil && c.fallback != nil {
		raw, err = c.fallback.Complete(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if req.Schema != nil {
		if verr := c.validator.Validate(req.Schema, raw); verr != nil {
			return nil, fmt.Errorf("llm: response failed schema validation: %w", verr)
		}
	}
	return raw, nil
}
