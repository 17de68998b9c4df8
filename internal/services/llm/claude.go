package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
)

// claudeProvider generates content with the Anthropic Messages API
type claudeProvider struct {
	client anthropic.Client
	config *common.ClaudeConfig
	logger arbor.ILogger
}

func newClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) (*claudeProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("claude api_key is not configured")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
		// retries are handled by withRetry
		option.WithMaxRetries(0),
	)

	return &claudeProvider{client: client, config: config, logger: logger}, nil
}

func (p *claudeProvider) GetProviderType() ProviderType { return ProviderClaude }

func (p *claudeProvider) SupportsMedia() bool { return false }

func (p *claudeProvider) Close() error { return nil }

// GenerateContent sends one user message
func (p *claudeProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	if request.Media != nil {
		return nil, fmt.Errorf("claude provider does not accept media input")
	}

	model := request.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(request.Prompt)),
		},
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = p.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if request.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemInstruction},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &ContentResponse{
		Text:     text.String(),
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}
