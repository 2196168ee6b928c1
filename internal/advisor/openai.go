package advisor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdvisor talks to any OpenAI-compatible chat completions endpoint.
type OpenAIAdvisor struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIAdvisor creates an advisor for the configured base URL.
func NewOpenAIAdvisor(cfg Config, httpClient *http.Client) (*OpenAIAdvisor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAIAdvisor{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

// Advise sends the prompt as a single message and returns the first choice.
func (a *OpenAIAdvisor) Advise(ctx context.Context, req Request) (string, error) {
	role := openai.ChatMessageRoleUser
	if req.Kind == Analysis {
		role = openai.ChatMessageRoleSystem
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.model(req.Kind),
		Messages: []openai.ChatCompletionMessage{
			{Role: role, Content: req.Prompt},
		},
		MaxTokens: a.cfg.maxTokens(req.Kind),
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrAdvisor, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrAdvisor)
	}
	return checkReply("openai", resp.Choices[0].Message.Content)
}
