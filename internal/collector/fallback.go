package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsSentinel/internal/model"

	"github.com/ternarybob/arbor"
)

// FallbackFetcher tries each fetcher in order and returns the first non-empty result.
type FallbackFetcher struct {
	fetchers []Fetcher
	logger   arbor.ILogger
}

// NewFallbackFetcher chains fetchers. Nil entries are ignored.
func NewFallbackFetcher(logger arbor.ILogger, fetchers ...Fetcher) *FallbackFetcher {
	f := &FallbackFetcher{logger: logger}
	for _, ft := range fetchers {
		if ft != nil {
			f.fetchers = append(f.fetchers, ft)
		}
	}
	return f
}

func (f *FallbackFetcher) Name() string {
	names := make([]string, len(f.fetchers))
	for i, ft := range f.fetchers {
		names[i] = ft.Name()
	}
	return strings.Join(names, ">")
}

// FetchNews returns an error only when every fetcher failed.
func (f *FallbackFetcher) FetchNews(ctx context.Context, symbol string, since time.Time) ([]model.RawArticle, error) {
	var lastErr error
	failed := 0
	for _, ft := range f.fetchers {
		items, err := ft.FetchNews(ctx, symbol, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn().Str("source", ft.Name()).Str("symbol", symbol).Err(err).Msg("News source failed, trying next")
			lastErr = err
			failed++
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
		f.logger.Debug().Str("source", ft.Name()).Str("symbol", symbol).Msg("News source returned nothing")
	}
	if failed > 0 && failed == len(f.fetchers) {
		return nil, fmt.Errorf("all news sources failed: %w", lastErr)
	}
	return nil, nil
}
