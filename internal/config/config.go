// Package config loads service configuration from an optional YAML or TOML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/floorplan"
	"github.com/ironsheep/floorplan-advisor/internal/narration"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" toml:"server"`
	Advisor    advisor.Config   `json:"advisor" yaml:"advisor" toml:"advisor"`
	Narration  narration.Config `json:"narration" yaml:"narration" toml:"narration"`
	OCR        OCRConfig        `json:"ocr" yaml:"ocr" toml:"ocr"`
	Extraction floorplan.Params `json:"extraction" yaml:"extraction" toml:"extraction"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" toml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host           string `json:"host" yaml:"host" toml:"host"`
	Port           int    `json:"port" yaml:"port" toml:"port"`
	FrontendOrigin string `json:"frontend_origin" yaml:"frontend_origin" toml:"frontend_origin"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes" toml:"max_upload_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OCRConfig configures Tesseract.
type OCRConfig struct {
	Language       string `json:"language" yaml:"language" toml:"language"`
	TessdataPrefix string `json:"tessdata_prefix" yaml:"tessdata_prefix" toml:"tessdata_prefix"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" toml:"level"`

	// Format is "json" or "console".
	Format string `json:"format" yaml:"format" toml:"format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			FrontendOrigin: "http://localhost:3000",
			MaxUploadBytes: 20 << 20,
		},
		Advisor:    advisor.DefaultConfig(),
		Narration:  narration.DefaultConfig(),
		OCR:        OCRConfig{Language: "eng"},
		Extraction: floorplan.DefaultParams(),
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (if non-empty and present), applies environment
// overrides and validates the result. The format is chosen by extension:
// .toml for TOML, anything else is parsed as YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(expanded, cfg)
	default:
		err = yaml.Unmarshal(expanded, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variables on top of file values.
func applyEnvOverrides(cfg *Config) error {
	port := os.Getenv("FLOORPLAN_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	if origin := os.Getenv("FLOORPLAN_FRONTEND_ORIGIN"); origin != "" {
		cfg.Server.FrontendOrigin = origin
	}

	if provider := os.Getenv("FLOORPLAN_PROVIDER"); provider != "" {
		cfg.Advisor.Provider = provider
	}

	// Keys only ever travel to the endpoint they were issued for.
	switch cfg.Advisor.Provider {
	case advisor.ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.Advisor.APIKey = key
		}
		cfg.Advisor.Retarget("", advisor.GeminiModel)
	case advisor.ProviderOllama:
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			cfg.Advisor.BaseURL = host
		}
		cfg.Advisor.Retarget(advisor.DefaultOllamaURL, advisor.OllamaModel)
	default:
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			cfg.Advisor.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Advisor.APIKey = key
			cfg.Advisor.Retarget(advisor.OpenAIBaseURL, advisor.OpenAIModel)
		}
	}

	if key := os.Getenv("FLOORPLAN_TTS_API_KEY"); key != "" {
		cfg.Narration.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Narration.APIKey == "" {
		cfg.Narration.APIKey = key
	}

	if dir := os.Getenv("FLOORPLAN_AUDIO_DIR"); dir != "" {
		cfg.Narration.Dir = dir
	}
	if prefix := os.Getenv("TESSDATA_PREFIX"); prefix != "" {
		cfg.OCR.TessdataPrefix = prefix
	}
	if level := os.Getenv("FLOORPLAN_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.FrontendOrigin == "" {
		errs = append(errs, errors.New("server.frontend_origin is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}

	switch c.Advisor.Provider {
	case advisor.ProviderOpenAI, advisor.ProviderGemini, advisor.ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("advisor.provider %q is not one of openai, gemini, ollama", c.Advisor.Provider))
	}
	if c.Advisor.ChatModel == "" {
		errs = append(errs, errors.New("advisor.chat_model is required"))
	}
	if c.Advisor.AnalysisMaxTokens <= 0 || c.Advisor.ChatMaxTokens <= 0 {
		errs = append(errs, errors.New("advisor token limits must be positive"))
	}

	if c.Narration.MaxArtifacts < 0 {
		errs = append(errs, errors.New("narration.max_artifacts must not be negative"))
	}

	if c.Extraction.CannyLow < 0 || c.Extraction.CannyHigh <= 0 {
		errs = append(errs, errors.New("extraction canny thresholds must be positive"))
	}
	if c.Extraction.Hough.Rho <= 0 || c.Extraction.Hough.Theta <= 0 || c.Extraction.Hough.Threshold <= 0 {
		errs = append(errs, errors.New("extraction hough rho, theta and threshold must be positive"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not json or console", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RequireCredentials reports missing API keys for the network
// collaborators. Offline commands skip this check.
func (c *Config) RequireCredentials() error {
	var errs []error
	if c.Advisor.Provider != advisor.ProviderOllama && c.Advisor.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing API key for advisor provider %q: set GROQ_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY", c.Advisor.Provider))
	}
	if c.Narration.APIKey == "" {
		errs = append(errs, errors.New("missing speech API key: set FLOORPLAN_TTS_API_KEY or OPENAI_API_KEY"))
	}
	return errors.Join(errs...)
}
