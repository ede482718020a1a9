package analysis

import (
	"context"
	"fmt"

	"NewsSentinel/internal/llm"
	"NewsSentinel/internal/model"

	"github.com/ternarybob/arbor"
)

// Narrator writes the weekly themes, momentum and outlook text.
type Narrator struct {
	client llm.Client
	logger arbor.ILogger
}

func NewNarrator(client llm.Client, logger arbor.ILogger) *Narrator {
	return &Narrator{client: client, logger: logger}
}

func (n *Narrator) SummarizeWeek(ctx context.Context, symbol string, articles []model.AnalyzedArticle) (model.WeekNarrative, error) {
	if len(articles) == 0 {
		return model.WeekNarrative{}, fmt.Errorf("summarize %s: no articles", symbol)
	}
	raw, err := n.client.Complete(ctx, weekSystem, buildWeekPrompt(symbol, articles))
	if err != nil {
		return model.WeekNarrative{}, fmt.Errorf("summarize %s: %w", symbol, err)
	}
	return parseNarrative(raw)
}
