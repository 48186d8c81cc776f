package generativeAI

import (
	"context"
	"fmt"
	"iter"
	"os"

	"google.golang.org/genai"
)

// AIClient wraps the Gemini client with the model configured once at
// construction.
type AIClient struct {
	client *genai.Client
	model  string
}

func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &AIClient{
		client: client,
		model:  model,
	}, nil
}

// GenerateContentStream streams one model response for the given working
// contents. Tool declarations travel in config.Tools.
func (ai *AIClient) GenerateContentStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return ai.client.Models.GenerateContentStream(ctx, ai.model, contents, config)
}

// GenerateContent is the non-streaming variant, used as a fallback.
func (ai *AIClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return ai.client.Models.GenerateContent(ctx, ai.model, contents, config)
}
