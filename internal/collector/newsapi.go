package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsSentinel/internal/model"

	"golang.org/x/time/rate"
)

// NewsAPIFetcher implements Fetcher against a JSON company-news REST API.
type NewsAPIFetcher struct {
	BaseURL string
	APIKey  string
	Limit   int
	Client  *http.Client

	limiter *rate.Limiter
}

// NewNewsAPIFetcher creates a new fetcher with optional proxy support.
func NewNewsAPIFetcher(baseURL, apiKey, proxyURL string, limit int, rps float64) *NewsAPIFetcher {
	if rps <= 0 {
		rps = 2
	}
	return &NewsAPIFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Limit:   limit,
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (f *NewsAPIFetcher) Name() string { return "api" }

// newsItem accepts both the plain and the "news_"-prefixed key sets the upstream has used.
type newsItem struct {
	Title        string          `json:"title"`
	NewsTitle    string          `json:"news_title"`
	Link         string          `json:"link"`
	NewsLink     string          `json:"news_link"`
	SourceLink   string          `json:"news_source_link"`
	URL          string          `json:"url"`
	Description  string          `json:"description"`
	ShortContent string          `json:"news_short_content"`
	Source       string          `json:"source"`
	Published    json.RawMessage `json:"published"`
	PublishedAt  json.RawMessage `json:"published_at"`
	PubDate      json.RawMessage `json:"news_pub_date"`
	PublicDate   json.RawMessage `json:"public_date"`
}

func (n newsItem) article() model.RawArticle {
	raw := model.RawArticle{
		Title:       firstNonEmpty(n.Title, n.NewsTitle),
		Link:        firstNonEmpty(n.Link, n.NewsLink, n.SourceLink, n.URL),
		Source:      n.Source,
		Description: firstNonEmpty(n.Description, n.ShortContent),
	}
	for _, v := range []json.RawMessage{n.Published, n.PublishedAt, n.PubDate, n.PublicDate} {
		if t, ok := parseTimestamp(v); ok {
			raw.PublishedAt = t
			break
		}
	}
	return raw
}

func (f *NewsAPIFetcher) FetchNews(ctx context.Context, symbol string, since time.Time) ([]model.RawArticle, error) {
	if f.BaseURL == "" {
		return nil, fmt.Errorf("news api: base url not configured")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	endpoint := fmt.Sprintf("%s/api/v1/news?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read news body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch news: status %d, body: %s", resp.StatusCode, string(body))
	}

	items, err := decodeNewsItems(body)
	if err != nil {
		return nil, err
	}
	raws := make([]model.RawArticle, len(items))
	for i, it := range items {
		raws[i] = it.article()
	}
	return finalize(symbol, raws, since, f.Limit), nil
}

// decodeNewsItems accepts either a bare array or an object wrapping it under "data".
func decodeNewsItems(body []byte) ([]newsItem, error) {
	body = bytes.TrimSpace(body)
	var items []newsItem
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("decode news: %w", err)
		}
		return items, nil
	}
	var wrapped struct {
		Data []newsItem `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode news: %w", err)
	}
	return wrapped.Data, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseTimestamp reads unix seconds, unix milliseconds or one of the common string layouts.
func parseTimestamp(v json.RawMessage) (time.Time, bool) {
	if len(v) == 0 || string(v) == "null" {
		return time.Time{}, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		if n <= 0 {
			return time.Time{}, false
		}
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), true
		}
		return time.Unix(int64(n), 0).UTC(), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
