package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAdvisor is wrapped by every failure of a recommendation provider,
// including timeouts and empty completions.
var ErrAdvisor = errors.New("recommendation service failed")

// Kind selects how a prompt is delivered to the model.
type Kind int

const (
	// Analysis prompts describe a freshly uploaded floorplan. They are sent
	// as a system message.
	Analysis Kind = iota

	// Chat prompts carry a user question. They are sent as a user message.
	Chat
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Analysis:
		return "analysis"
	case Chat:
		return "chat"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Request is one prompt for the recommendation service.
type Request struct {
	Kind   Kind
	Prompt string
}

// Advisor produces architectural advice for a prompt.
type Advisor interface {
	Advise(ctx context.Context, req Request) (string, error)
}

// Config selects and tunes the recommendation provider.
type Config struct {
	// Provider is one of "openai", "gemini" or "ollama". The openai
	// provider talks to any OpenAI-compatible endpoint (Groq by default).
	Provider string `json:"provider" yaml:"provider" toml:"provider"`

	APIKey  string `json:"-" yaml:"api_key" toml:"api_key"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url" toml:"base_url"`

	// AnalysisModel and ChatModel name the model per request kind. An
	// empty AnalysisModel falls back to ChatModel.
	AnalysisModel string `json:"analysis_model,omitempty" yaml:"analysis_model" toml:"analysis_model"`
	ChatModel     string `json:"chat_model" yaml:"chat_model" toml:"chat_model"`

	AnalysisMaxTokens int `json:"analysis_max_tokens" yaml:"analysis_max_tokens" toml:"analysis_max_tokens"`
	ChatMaxTokens     int `json:"chat_max_tokens" yaml:"chat_max_tokens" toml:"chat_max_tokens"`

	Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`

	// RequestsPerMinute caps outgoing calls. Zero disables the limit.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" toml:"requests_per_minute"`
}

// Providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Endpoints and default models per backend.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"

	GroqModel   = "llama-3.3-70b-versatile"
	OpenAIModel = "gpt-4o-mini"
	GeminiModel = "gemini-2.5-flash"
	OllamaModel = "llama3.3"
)

// DefaultConfig returns the Groq-backed defaults.
func DefaultConfig() Config {
	return Config{
		Provider:          ProviderOpenAI,
		BaseURL:           GroqBaseURL,
		ChatModel:         GroqModel,
		AnalysisMaxTokens: 500,
		ChatMaxTokens:     600,
		Timeout:           60 * time.Second,
	}
}

// Retarget moves fields still holding the Groq defaults to another
// backend. Explicitly configured endpoints and models are left alone.
func (c *Config) Retarget(baseURL, model string) {
	if c.BaseURL == GroqBaseURL {
		c.BaseURL = baseURL
	}
	if c.ChatModel == GroqModel {
		c.ChatModel = model
	}
	if c.AnalysisModel == GroqModel {
		c.AnalysisModel = model
	}
}

func (c Config) model(kind Kind) string {
	if kind == Analysis && c.AnalysisModel != "" {
		return c.AnalysisModel
	}
	return c.ChatModel
}

func (c Config) maxTokens(kind Kind) int {
	if kind == Analysis {
		return c.AnalysisMaxTokens
	}
	return c.ChatMaxTokens
}

// checkReply trims a completion and rejects empty ones.
func checkReply(provider, reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: %s returned an empty completion", ErrAdvisor, provider)
	}
	return reply, nil
}
