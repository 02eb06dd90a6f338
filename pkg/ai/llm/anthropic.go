package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
)

// AnthropicProvider serves completions via the Anthropic Messages API. It is
// the curator's primary provider for every call site (spec §4.6: "Preferred
// model ... is attempted first").
type AnthropicProvider struct {
	sdk     anthropic.Client
	breaker *gobreaker.CircuitBreaker
}

// NewAnthropicProvider builds a provider authenticated with apiKey, wrapped
// in a circuit breaker named after the provider so repeated upstream
// failures stop hammering Anthropic and fail fast to the fallback.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		sdk: anthropic.NewClient(option.WithAPIKey(apiKey)),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "anthropic",
			MaxRequests: 5,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		msg, err := p.sdk.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(req.Model),
			MaxTokens: 4096,
			System: []anthropic.TextBlockParam{
				{Text: req.System},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
			},
		})
		if err != nil {
			if isRateLimit(err) {
				return nil, &RateLimitError{Provider: "anthropic", Err: err}
			}
			return nil, err
		}
		return extractText(msg), nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	text := result.(string)
	if req.Schema == nil {
		return json.Marshal(map[string]string{"text": text})
	}
	return extractJSON(text)
}

func extractText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// extractJSON pulls the first JSON object or array out of a model response,
// tolerating surrounding prose or markdown code fences — models asked for
// structured output still sometimes wrap it.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object or array found in response")
	}
	end := strings.LastIndexAny(text, "}]")
	if end < start {
		return nil, fmt.Errorf("no JSON object or array found in response")
	}
	candidate := text[start : end+1]

	var probe any
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return json.RawMessage(candidate), nil
}

func isRateLimit(err error) bool {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return apiErr.StatusCode == 429
	}
	return false
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	for err != nil {
		if e, ok := err.(*anthropic.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
