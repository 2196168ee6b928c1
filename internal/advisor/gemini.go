package advisor

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiAdvisor uses the Gemini API.
//
// Analysis prompts become the system instruction of an otherwise empty
// turn; chat prompts are sent as user content.
type GeminiAdvisor struct {
	client *genai.Client
	cfg    Config
}

// NewGeminiAdvisor creates a Gemini API client.
func NewGeminiAdvisor(ctx context.Context, cfg Config, httpClient *http.Client) (*GeminiAdvisor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider requires an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiAdvisor{client: client, cfg: cfg}, nil
}

// Advise generates one completion.
func (a *GeminiAdvisor) Advise(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(a.cfg.maxTokens(req.Kind)),
	}

	var contents []*genai.Content
	if req.Kind == Analysis {
		config.SystemInstruction = genai.NewContentFromText(req.Prompt, genai.RoleUser)
		contents = genai.Text("Analyze this floorplan.")
	} else {
		contents = []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.cfg.model(req.Kind), contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: generate content: %v", ErrAdvisor, err)
	}
	return checkReply("gemini", resp.Text())
}
