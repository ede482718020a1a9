package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"NewsSentinel/internal/model"
)

type articleIdentity struct {
	symbol, title string
	published     int64
}

type weekIdentity struct {
	symbol    string
	weekStart int64
}

// MemoryStore keeps everything in process memory. Used when no database is configured and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	articles  []model.AnalyzedArticle
	seen      map[articleIdentity]int64
	signals   []model.Signal
	byArticle map[int64]bool
	summaries map[weekIdentity]model.WeeklySummary
	watchlist []string
	nextID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:      make(map[articleIdentity]int64),
		byArticle: make(map[int64]bool),
		summaries: make(map[weekIdentity]model.WeeklySummary),
	}
}

func (m *MemoryStore) InsertArticle(_ context.Context, a *model.AnalyzedArticle) (bool, error) {
	normalizeArticle(a)
	id := articleIdentity{a.Symbol, a.Title, toUnix(a.PublishedAt)}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.nextID++
	a.ID = m.nextID
	m.seen[id] = a.ID

	cp := *a
	cp.KeyDrivers = emptyToNil(append([]string(nil), a.KeyDrivers...))
	cp.Risks = emptyToNil(append([]string(nil), a.Risks...))
	m.articles = append(m.articles, cp)
	return true, nil
}

func (m *MemoryStore) ArticleExists(_ context.Context, symbol, title string, publishedAt time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[articleIdentity{NormalizeSymbol(symbol), title, toUnix(NormalizeTime(publishedAt))}]
	return ok, nil
}

func (m *MemoryStore) ArticlesBetween(_ context.Context, symbol string, from, to time.Time) ([]model.AnalyzedArticle, error) {
	symbol = NormalizeSymbol(symbol)
	from, to = NormalizeTime(from), NormalizeTime(to)

	m.mu.RLock()
	var out []model.AnalyzedArticle
	for _, a := range m.articles {
		if a.Symbol == symbol && !a.PublishedAt.Before(from) && a.PublishedAt.Before(to) {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.Before(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) LatestArticles(_ context.Context, symbol string, limit int) ([]model.AnalyzedArticle, error) {
	symbol = NormalizeSymbol(symbol)

	m.mu.RLock()
	var out []model.AnalyzedArticle
	for _, a := range m.articles {
		if a.Symbol == symbol {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) InsertSignal(_ context.Context, s *model.Signal) (bool, error) {
	normalizeSignal(s)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.byArticle[s.ArticleID] {
		return false, nil
	}
	for _, existing := range m.signals {
		if existing.ID == s.ID {
			return false, nil
		}
	}
	m.byArticle[s.ArticleID] = true
	m.signals = append(m.signals, *s)
	return true, nil
}

func (m *MemoryStore) MarkSignalRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.signals {
		if m.signals[i].ID == id {
			m.signals[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("signal %s: %w", id, ErrNotFound)
}

func (m *MemoryStore) UnreadSignals(_ context.Context, symbol string, now time.Time, limit int) ([]model.Signal, error) {
	symbol = NormalizeSymbol(symbol)
	now = NormalizeTime(now)

	m.mu.RLock()
	var out []model.Signal
	for i := len(m.signals) - 1; i >= 0; i-- {
		s := m.signals[i]
		if s.Read || s.Expired(now) {
			continue
		}
		if symbol != "" && s.Symbol != symbol {
			continue
		}
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpsertWeeklySummary(_ context.Context, s *model.WeeklySummary) error {
	normalizeSummary(s)
	cp := *s
	cp.Themes = emptyToNil(append([]string(nil), s.Themes...))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[weekIdentity{cp.Symbol, toUnix(cp.WeekStart)}] = cp
	return nil
}

func (m *MemoryStore) WeeklySummary(_ context.Context, symbol string, weekStart time.Time) (*model.WeeklySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.summaries[weekIdentity{NormalizeSymbol(symbol), toUnix(NormalizeTime(weekStart))}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) LatestWeeklySummary(_ context.Context, symbol string) (*model.WeeklySummary, error) {
	symbol = NormalizeSymbol(symbol)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *model.WeeklySummary
	for k, s := range m.summaries {
		if k.symbol != symbol {
			continue
		}
		if latest == nil || s.WeekStart.After(latest.WeekStart) {
			cp := s
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) WatchlistSymbols(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.watchlist...), nil
}

func (m *MemoryStore) AddWatch(_ context.Context, symbol string) (bool, error) {
	symbol = NormalizeSymbol(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.watchlist {
		if s == symbol {
			return false, nil
		}
	}
	m.watchlist = append(m.watchlist, symbol)
	return true, nil
}

func (m *MemoryStore) RemoveWatch(_ context.Context, symbol string) (bool, error) {
	symbol = NormalizeSymbol(symbol)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.watchlist {
		if s == symbol {
			m.watchlist = append(m.watchlist[:i], m.watchlist[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Close() error { return nil }
