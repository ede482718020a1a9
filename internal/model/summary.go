package model

import "time"

// TrendDirection is the week-over-week sentiment movement.
type TrendDirection string

const (
	TrendImproving TrendDirection = "Improving"
	TrendDeclining TrendDirection = "Declining"
	TrendStable    TrendDirection = "Stable"
	TrendVolatile  TrendDirection = "Volatile"
)

// WeeklySummary is the single rollup row per (Symbol, WeekStart).
type WeeklySummary struct {
	Symbol        string         `json:"symbol"`
	WeekStart     time.Time      `json:"week_start"`
	WeekEnd       time.Time      `json:"week_end"`
	TotalArticles int            `json:"total_articles"`
	BullishCount  int            `json:"bullish_count"`
	BearishCount  int            `json:"bearish_count"`
	NeutralCount  int            `json:"neutral_count"`
	AvgScore      float64        `json:"avg_score"`
	Trend         TrendDirection `json:"trend_direction"`
	Themes        []string       `json:"key_themes"`
	MomentumShift string         `json:"momentum_shift"`
	Outlook       string         `json:"outlook"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// WeekNarrative is what the summarization collaborator returns.
type WeekNarrative struct {
	Themes        []string `json:"key_themes"`
	MomentumShift string   `json:"momentum_shift"`
	Outlook       string   `json:"outlook"`
}
