package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsSentinel/internal/model"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

// DefaultGoogleNewsURL is the Google News RSS search endpoint.
const DefaultGoogleNewsURL = "https://news.google.com/rss/search"

// GoogleNewsFetcher implements Fetcher with the Google News RSS search feed.
type GoogleNewsFetcher struct {
	BaseURL  string
	Language string
	Region   string
	Limit    int
	Client   *http.Client

	limiter *rate.Limiter
	parser  *gofeed.Parser
}

// NewGoogleNewsFetcher creates a fetcher for the given language/region edition.
// rps throttles outbound feed requests.
func NewGoogleNewsFetcher(language, region, proxyURL string, limit int, rps float64) *GoogleNewsFetcher {
	if language == "" {
		language = "vi"
	}
	if region == "" {
		region = "VN"
	}
	if rps <= 0 {
		rps = 2
	}
	return &GoogleNewsFetcher{
		BaseURL:  DefaultGoogleNewsURL,
		Language: language,
		Region:   region,
		Limit:    limit,
		Client:   newHTTPClient(proxyURL, 30*time.Second),
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		parser:   gofeed.NewParser(),
	}
}

func (f *GoogleNewsFetcher) Name() string { return "google" }

func (f *GoogleNewsFetcher) searchURL(symbol string) string {
	q := url.Values{}
	q.Set("q", symbol+" cổ phiếu")
	q.Set("hl", f.Language)
	q.Set("gl", f.Region)
	q.Set("ceid", f.Region+":"+f.Language)
	return f.BaseURL + "?" + q.Encode()
}

func (f *GoogleNewsFetcher) FetchNews(ctx context.Context, symbol string, since time.Time) ([]model.RawArticle, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.searchURL(symbol), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google news fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google news: status %d, body: %s", resp.StatusCode, string(body))
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google news parse: %w", err)
	}

	items := make([]model.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		raw := model.RawArticle{
			Title:       item.Title,
			Link:        item.Link,
			Source:      sourceFromTitle(item.Title),
			Description: item.Description,
		}
		if item.PublishedParsed != nil {
			raw.PublishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			raw.PublishedAt = item.UpdatedParsed.UTC()
		}
		items = append(items, raw)
	}
	return finalize(symbol, items, since, f.Limit), nil
}

// sourceFromTitle takes the publisher from a Google News headline ("Headline - Publisher").
func sourceFromTitle(title string) string {
	i := strings.LastIndex(title, " - ")
	if i < 0 {
		return "Google News"
	}
	return strings.TrimSpace(title[i+3:])
}
