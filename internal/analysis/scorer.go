package analysis

import (
	"context"
	"fmt"

	"NewsSentinel/internal/llm"
	"NewsSentinel/internal/model"

	"github.com/ternarybob/arbor"
)

// Scorer turns one article into a ScoreResult via an LLM completion.
type Scorer struct {
	client llm.Client
	logger arbor.ILogger
}

func NewScorer(client llm.Client, logger arbor.ILogger) *Scorer {
	return &Scorer{client: client, logger: logger}
}

// Score is the quota-limited upstream call. Callers gate it; Score itself does not wait.
func (s *Scorer) Score(ctx context.Context, symbol string, article model.RawArticle, marketContext string) (model.ScoreResult, error) {
	raw, err := s.client.Complete(ctx, scoreSystem, buildScorePrompt(symbol, article, marketContext))
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("score %q: %w", article.Title, err)
	}
	res, err := parseScore(raw)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Str("reply", truncateRunes(raw, 200)).Msg("Unparseable score reply")
		return model.ScoreResult{}, fmt.Errorf("score %q: %w", article.Title, err)
	}
	return res, nil
}
