package model

import "time"

// SignalType enumerates the alerts the detector can emit.
type SignalType string

const (
	SignalDividend   SignalType = "dividend_announced"
	SignalEarnings   SignalType = "earnings_beat"
	SignalContract   SignalType = "major_contract"
	SignalGovernment SignalType = "government_action"
	SignalExpansion  SignalType = "business_expansion"
	SignalLeadership SignalType = "leadership_change"
)

// Priority of a signal.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Signal is an alert derived from one AnalyzedArticle. Only Read ever changes after creation.
type Signal struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Type        SignalType `json:"signal_type"`
	Priority    Priority   `json:"priority"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DetectedAt  time.Time  `json:"detected_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Read        bool       `json:"is_read"`
	ArticleID   int64      `json:"article_id"`
}

// Expired reports whether the signal is past its expiry at t.
func (s *Signal) Expired(t time.Time) bool {
	return s.ExpiresAt != nil && !t.Before(*s.ExpiresAt)
}
