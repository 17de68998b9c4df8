package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/relatio/internal/common"
)

// geminiProvider generates content with the Google Gemini API
type geminiProvider struct {
	client *genai.Client
	config *common.GeminiConfig
	logger arbor.ILogger
}

func newGeminiProvider(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*geminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiProvider{client: client, config: config, logger: logger}, nil
}

func (p *geminiProvider) GetProviderType() ProviderType { return ProviderGemini }

func (p *geminiProvider) SupportsMedia() bool { return true }

func (p *geminiProvider) Close() error {
	p.client = nil
	return nil
}

// GenerateContent sends one user turn, optionally with inline media
func (p *geminiProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	if p.client == nil {
		return nil, fmt.Errorf("gemini client is closed")
	}

	model := request.Model
	if model == "" {
		model = p.config.Model
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = p.config.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}
	if request.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}

	// When schema is provided, Gemini enforces JSON output matching the schema
	if len(request.OutputSchema) > 0 {
		genaiSchema, err := convertToGenaiSchema(request.OutputSchema)
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to convert output schema")
		} else if genaiSchema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = genaiSchema
		}
	}

	parts := []*genai.Part{genai.NewPartFromText(request.Prompt)}
	if request.Media != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: request.Media.Data, MIMEType: request.Media.MIMEType},
		})
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	return &ContentResponse{
		Text:     resp.Text(),
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}
