package advisor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaAdvisor uses a local Ollama server.
type OllamaAdvisor struct {
	client *api.Client
	cfg    Config
}

// NewOllamaAdvisor creates a client for cfg.BaseURL.
func NewOllamaAdvisor(cfg Config, httpClient *http.Client) (*OllamaAdvisor, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultOllamaURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %q: %w", raw, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OllamaAdvisor{client: api.NewClient(base, httpClient), cfg: cfg}, nil
}

// Advise runs a non-streaming chat request.
func (a *OllamaAdvisor) Advise(ctx context.Context, req Request) (string, error) {
	role := "user"
	if req.Kind == Analysis {
		role = "system"
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    a.cfg.model(req.Kind),
		Messages: []api.Message{{Role: role, Content: req.Prompt}},
		Stream:   &stream,
		Options: map[string]any{
			"num_predict": a.cfg.maxTokens(req.Kind),
		},
	}

	var reply string
	err := a.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		reply += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat: %v", ErrAdvisor, err)
	}
	return checkReply("ollama", reply)
}
