package model

import "time"

// Sentiment is the AI verdict direction for one article.
type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentBearish Sentiment = "Bearish"
	SentimentNeutral Sentiment = "Neutral"
)

// RawArticle is a candidate returned by a news fetcher, before scoring.
type RawArticle struct {
	Symbol      string
	Title       string
	Link        string
	Source      string
	Description string
	Content     string // extracted body text, empty when not fetched
	PublishedAt time.Time
}

// Body is the best available text for the article.
func (r RawArticle) Body() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Description
}

// ScoreResult is the structured verdict returned by the scoring service.
type ScoreResult struct {
	IsRelevant      bool      `json:"is_relevant"`
	RelevanceReason string    `json:"relevance_reason"`
	Sentiment       Sentiment `json:"sentiment" validate:"oneof=Bullish Bearish Neutral"`
	TLDR            string    `json:"tldr"`
	Rationale       string    `json:"rationale"`
	KeyDrivers      []string  `json:"key_drivers"`
	Risks           []string  `json:"risks_or_caveats"`
	Score           int       `json:"score" validate:"min=1,max=10"`
	Confidence      float64   `json:"confidence" validate:"gte=0,lte=1"`
}

// AnalyzedArticle is one news item plus its AI verdict. Unique per (Symbol, Title, PublishedAt).
type AnalyzedArticle struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
	IsRelevant  bool      `json:"is_relevant"`
	Sentiment   Sentiment `json:"sentiment"`
	Summary     string    `json:"summary"`
	Rationale   string    `json:"rationale"`
	KeyDrivers  []string  `json:"key_drivers"`
	Risks       []string  `json:"risks"`
	Score       int       `json:"score"`
	Confidence  float64   `json:"confidence"`
}

// NewAnalyzedArticle combines a candidate with its score.
func NewAnalyzedArticle(raw RawArticle, res ScoreResult, analyzedAt time.Time) AnalyzedArticle {
	return AnalyzedArticle{
		Symbol:      raw.Symbol,
		Title:       raw.Title,
		Link:        raw.Link,
		PublishedAt: raw.PublishedAt,
		AnalyzedAt:  analyzedAt,
		IsRelevant:  res.IsRelevant,
		Sentiment:   res.Sentiment,
		Summary:     res.TLDR,
		Rationale:   res.Rationale,
		KeyDrivers:  append([]string(nil), res.KeyDrivers...),
		Risks:       append([]string(nil), res.Risks...),
		Score:       res.Score,
		Confidence:  res.Confidence,
	}
}
