package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"

	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultClaudeModel = "claude-haiku-4-5"
)

// Client is a single-turn text completion service.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
	MaxTokens   int
}

// New builds the client for cfg.Provider.
func New(ctx context.Context, cfg Config, logger arbor.ILogger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required for provider %q", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}

	logger.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Initializing LLM client")

	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, cfg, logger)
	case ProviderClaude:
		return NewClaudeClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}
