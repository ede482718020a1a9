package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"NewsSentinel/internal/model"
)

// MarketUnavailable is the market context used when price data cannot be fetched.
const MarketUnavailable = "Stock Price: Data Unavailable"

// Fetcher returns candidate articles for one symbol published at or after since.
type Fetcher interface {
	FetchNews(ctx context.Context, symbol string, since time.Time) ([]model.RawArticle, error)
	Name() string
}

// ContentExtractor downloads an article page and reduces it to its main body text.
type ContentExtractor interface {
	Extract(ctx context.Context, link string) (string, error)
}

// MarketContext describes recent price action for a symbol. It never fails;
// when data is missing it returns MarketUnavailable.
type MarketContext interface {
	Context(ctx context.Context, symbol string) string
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
