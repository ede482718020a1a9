package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
	cfg    Config
	retry  RetryConfig
	logger arbor.ILogger
}

func NewGeminiClient(ctx context.Context, cfg Config, logger arbor.ILogger) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client: client,
		cfg:    cfg,
		retry:  DefaultRetryConfig(cfg.MaxRetries),
		logger: logger,
	}, nil
}

func (g *GeminiClient) Name() string { return ProviderGemini + "/" + g.cfg.Model }

// Complete asks for a JSON response; every prompt in this service expects one.
func (g *GeminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(g.cfg.Temperature)),
		MaxOutputTokens:  int32(g.cfg.MaxTokens),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	return withRetry(ctx, g.retry, g.logger, ProviderGemini, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := g.client.Models.GenerateContent(callCtx, g.cfg.Model, contents, config)
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", fmt.Errorf("gemini returned an empty response")
		}
		g.logger.Debug().Str("model", g.cfg.Model).Dur("duration", time.Since(start)).Int("chars", len(text)).Msg("Gemini completion")
		return text, nil
	})
}
