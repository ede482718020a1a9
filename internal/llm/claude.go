package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
)

type messagesFunc func(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	newMessage messagesFunc
	cfg        Config
	retry      RetryConfig
	logger     arbor.ILogger
}

func NewClaudeClient(cfg Config, logger arbor.ILogger) *ClaudeClient {
	if cfg.Model == "" {
		cfg.Model = DefaultClaudeModel
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &ClaudeClient{
		newMessage: client.Messages.New,
		cfg:        cfg,
		retry:      DefaultRetryConfig(cfg.MaxRetries),
		logger:     logger,
	}
}

func (c *ClaudeClient) Name() string { return ProviderClaude + "/" + c.cfg.Model }

func (c *ClaudeClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: int64(c.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(c.cfg.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return withRetry(ctx, c.retry, c.logger, ProviderClaude, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := c.newMessage(callCtx, params)
		if err != nil {
			return "", fmt.Errorf("claude messages: %w", err)
		}

		var sb strings.Builder
		for _, block := range resp.Content {
			if string(block.Type) == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", fmt.Errorf("claude returned no text content")
		}
		c.logger.Debug().Str("model", c.cfg.Model).Dur("duration", time.Since(start)).Int("chars", sb.Len()).Msg("Claude completion")
		return sb.String(), nil
	})
}
