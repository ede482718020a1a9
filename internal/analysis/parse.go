package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"NewsSentinel/internal/model"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidScore means the model's reply could not be turned into a valid ScoreResult.
var ErrInvalidScore = errors.New("invalid score response")

var validate = validator.New()

// extractJSON strips markdown fences and surrounding prose, keeping the outermost object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func parseScore(raw string) (model.ScoreResult, error) {
	var res model.ScoreResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &res); err != nil {
		return model.ScoreResult{}, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	res.Sentiment = canonicalSentiment(res.Sentiment)
	if err := validate.Struct(res); err != nil {
		return model.ScoreResult{}, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	return res, nil
}

func parseNarrative(raw string) (model.WeekNarrative, error) {
	var n model.WeekNarrative
	if err := json.Unmarshal([]byte(extractJSON(raw)), &n); err != nil {
		return model.WeekNarrative{}, fmt.Errorf("decode weekly narrative: %w", err)
	}
	n.MomentumShift = strings.TrimSpace(n.MomentumShift)
	n.Outlook = strings.TrimSpace(n.Outlook)
	return n, nil
}

func canonicalSentiment(s model.Sentiment) model.Sentiment {
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "bullish":
		return model.SentimentBullish
	case "bearish":
		return model.SentimentBearish
	case "neutral":
		return model.SentimentNeutral
	}
	return s
}
