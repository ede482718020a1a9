package collector

import (
	"context"
	"fmt"
	"time"

	"NewsSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// When Articles has no entry for a symbol it generates a small deterministic batch.
type MockFetcher struct {
	Articles map[string][]model.RawArticle
	Errors   map[string]error
	Now      func() time.Time
	Count    int

	Calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchNews(_ context.Context, symbol string, since time.Time) ([]model.RawArticle, error) {
	m.Calls = append(m.Calls, symbol)
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if items, ok := m.Articles[symbol]; ok {
		return finalize(symbol, items, since, 0), nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	count := m.Count
	if count <= 0 {
		count = 3
	}
	return finalize(symbol, generateMockArticles(symbol, now(), count), since, 0), nil
}

var mockHeadlines = []string{
	"%s announces cash dividend for shareholders",
	"%s quarterly profit beats expectations",
	"%s signs new contract with state partner",
	"%s plans new factory expansion",
	"Analysts review %s outlook",
}

// generateMockArticles stamps headlines on the hour so repeated calls within the hour
// yield identical dedup keys.
func generateMockArticles(symbol string, now time.Time, count int) []model.RawArticle {
	base := now.UTC().Truncate(time.Hour)
	items := make([]model.RawArticle, count)
	for i := 0; i < count; i++ {
		title := fmt.Sprintf(mockHeadlines[i%len(mockHeadlines)], symbol)
		items[i] = model.RawArticle{
			Title:       title,
			Link:        fmt.Sprintf("https://example.com/news/%s/%d", symbol, i),
			Source:      "mock",
			Description: title + ".",
			PublishedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return items
}
