package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"NewsSentinel/internal/model"
)

// ErrNotFound is returned when a requested signal or summary does not exist.
var ErrNotFound = errors.New("not found")

// Store is the durable record the pipeline writes and the read API queries.
//
// Timestamps are kept at second precision in UTC; every backend normalizes on the way in,
// so (symbol, title, published_at) compares the same regardless of the feed's time zone.
type Store interface {
	// InsertArticle stores a if no article with the same (symbol, title, published_at) exists.
	// It reports whether a row was created and sets a.ID when it was.
	InsertArticle(ctx context.Context, a *model.AnalyzedArticle) (bool, error)
	ArticleExists(ctx context.Context, symbol, title string, publishedAt time.Time) (bool, error)
	// ArticlesBetween returns a symbol's articles published in [from, to), oldest first.
	ArticlesBetween(ctx context.Context, symbol string, from, to time.Time) ([]model.AnalyzedArticle, error)
	// LatestArticles returns up to limit articles, newest first.
	LatestArticles(ctx context.Context, symbol string, limit int) ([]model.AnalyzedArticle, error)

	// InsertSignal stores s unless a signal already exists for s.ArticleID.
	InsertSignal(ctx context.Context, s *model.Signal) (bool, error)
	// MarkSignalRead flips the read flag. Marking twice is a no-op.
	MarkSignalRead(ctx context.Context, id string) error
	// UnreadSignals returns unread, unexpired signals, newest first. An empty symbol matches all.
	UnreadSignals(ctx context.Context, symbol string, now time.Time, limit int) ([]model.Signal, error)

	// UpsertWeeklySummary writes the single row for (symbol, week_start), replacing any prior row.
	UpsertWeeklySummary(ctx context.Context, s *model.WeeklySummary) error
	WeeklySummary(ctx context.Context, symbol string, weekStart time.Time) (*model.WeeklySummary, error)
	LatestWeeklySummary(ctx context.Context, symbol string) (*model.WeeklySummary, error)

	// WatchlistSymbols returns symbols in the order they were added.
	WatchlistSymbols(ctx context.Context) ([]string, error)
	AddWatch(ctx context.Context, symbol string) (bool, error)
	RemoveWatch(ctx context.Context, symbol string) (bool, error)

	Close() error
}

// NormalizeTime is the precision every backend stores timestamps at.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeArticle(a *model.AnalyzedArticle) {
	a.Symbol = NormalizeSymbol(a.Symbol)
	a.PublishedAt = NormalizeTime(a.PublishedAt)
	a.AnalyzedAt = NormalizeTime(a.AnalyzedAt)
}

func normalizeSignal(s *model.Signal) {
	s.Symbol = NormalizeSymbol(s.Symbol)
	s.DetectedAt = NormalizeTime(s.DetectedAt)
	if s.ExpiresAt != nil {
		t := NormalizeTime(*s.ExpiresAt)
		s.ExpiresAt = &t
	}
}

func normalizeSummary(s *model.WeeklySummary) {
	s.Symbol = NormalizeSymbol(s.Symbol)
	s.WeekStart = NormalizeTime(s.WeekStart)
	s.WeekEnd = NormalizeTime(s.WeekEnd)
	s.GeneratedAt = NormalizeTime(s.GeneratedAt)
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
