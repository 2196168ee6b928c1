package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrNarration is wrapped by every synthesis failure.
var ErrNarration = errors.New("speech synthesis failed")

// maxInputRunes is the longest text the speech endpoint accepts.
const maxInputRunes = 4096

// Synthesizer converts text to mp3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Config configures speech synthesis and artifact retention.
type Config struct {
	APIKey  string  `json:"-" yaml:"api_key" toml:"api_key"`
	BaseURL string  `json:"base_url,omitempty" yaml:"base_url" toml:"base_url"`
	Model   string  `json:"model" yaml:"model" toml:"model"`
	Voice   string  `json:"voice" yaml:"voice" toml:"voice"`
	Speed   float64 `json:"speed,omitempty" yaml:"speed" toml:"speed"`

	Dir             string        `json:"dir" yaml:"dir" toml:"dir"`
	MaxArtifacts    int           `json:"max_artifacts" yaml:"max_artifacts" toml:"max_artifacts"`
	MaxAge          time.Duration `json:"max_age" yaml:"max_age" toml:"max_age"`
	JanitorInterval time.Duration `json:"janitor_interval" yaml:"janitor_interval" toml:"janitor_interval"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
}

// DefaultConfig returns the narration defaults.
func DefaultConfig() Config {
	return Config{
		Model:           string(openai.TTSModel1),
		Voice:           string(openai.VoiceAlloy),
		MaxArtifacts:    16,
		MaxAge:          time.Hour,
		JanitorInterval: 5 * time.Minute,
		Timeout:         60 * time.Second,
	}
}

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	speed  float64
}

// NewOpenAISynthesizer creates a synthesizer from cfg.
func NewOpenAISynthesizer(cfg Config, httpClient *http.Client) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech synthesis requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.SpeechModel(cfg.Model),
		voice:  openai.SpeechVoice(cfg.Voice),
		speed:  cfg.Speed,
	}, nil
}

// Synthesize requests mp3 audio for text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          s.speed,
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Narrator synthesizes text and stores the result.
type Narrator struct {
	synth   Synthesizer
	store   *Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewNarrator combines a synthesizer and a store.
func NewNarrator(synth Synthesizer, store *Store, timeout time.Duration, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{synth: synth, store: store, timeout: timeout, logger: logger}
}

// Store returns the artifact store.
func (n *Narrator) Store() *Store {
	return n.store
}

// Narrate converts text to a new audio artifact.
func (n *Narrator) Narrate(ctx context.Context, text string) (Artifact, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	input := truncateRunes(text, maxInputRunes)
	if input == "" {
		return Artifact{}, fmt.Errorf("%w: nothing to narrate", ErrNarration)
	}

	start := time.Now()
	audio, err := n.synth.Synthesize(ctx, input)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrNarration, err)
	}
	defer audio.Close()

	a, err := n.store.Save(audio)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrNarration, err)
	}

	n.logger.Info("narrated reply",
		zap.String("artifact", a.Name),
		zap.Int64("bytes", a.Size),
		zap.Duration("elapsed", time.Since(start)))
	return a, nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
