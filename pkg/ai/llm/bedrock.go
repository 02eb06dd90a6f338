package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sony/gobreaker"
)

// BedrockProvider serves completions via AWS Bedrock's Converse API. It is
// the curator's fallback provider (spec §4.6), used when the primary
// Anthropic provider errors or its circuit is open — typically pointed at
// the same model family through Bedrock's managed endpoint.
type BedrockProvider struct {
	runtime *bedrockruntime.Client
	breaker *gobreaker.CircuitBreaker
}

// NewBedrockProvider loads the default AWS config (environment, shared
// config file, or instance role) and returns a provider over it.
func NewBedrockProvider(ctx context.Context, region string) (*BedrockProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &BedrockProvider{
		runtime: bedrockruntime.NewFromConfig(cfg),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "bedrock",
			MaxRequests: 5,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		out, err := p.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
			ModelId: aws.String(string(req.Model)),
			System: []types.SystemContentBlock{
				&types.SystemContentBlockMemberText{Value: req.System},
			},
			Messages: []types.Message{
				{
					Role: types.ConversationRoleUser,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: req.User},
					},
				},
			},
		})
		if err != nil {
			if isThrottled(err) {
				return nil, &RateLimitError{Provider: "bedrock", Err: err}
			}
			return nil, err
		}
		return extractBedrockText(out), nil
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}

	text := result.(string)
	if req.Schema == nil {
		return json.Marshal(map[string]string{"text": text})
	}
	return extractJSON(text)
}

func extractBedrockText(out *bedrockruntime.ConverseOutput) string {
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, block := range msgOutput.Value.Content {
		if textBlock, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(textBlock.Value)
		}
	}
	return sb.String()
}

func isThrottled(err error) bool {
	var throttled *types.ThrottlingException
	return errors.As(err, &throttled)
}
