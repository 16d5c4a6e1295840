package llm

import (
	"context"
	"fmt"
	"strings"

	domsvc "StockCast/internal/domain/service"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient generates text with the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	temp   float32
}

var _ domsvc.TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini backed generator.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{client: client, model: model, temp: 0.3}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

// Generate runs one content generation with the system instruction attached.
func (g *GeminiClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temp),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractText(result)
}

func extractText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content generated")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no content generated")
	}
	return sb.String(), nil
}
