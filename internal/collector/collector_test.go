package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NewsSentinel/internal/logging"
	"NewsSentinel/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>HPG cổ phiếu - Google News</title>
<item><title>HPG công bố chia cổ tức tiền mặt - CafeF</title><link>https://cafef.vn/hpg-1.chn</link>
<pubDate>Mon, 02 Mar 2026 08:00:00 GMT</pubDate><description>&lt;a href="x"&gt;Hòa Phát&lt;/a&gt; chia cổ tức</description></item>
<item><title>HPG lợi nhuận quý tăng mạnh - VnExpress</title><link>https://vnexpress.net/hpg-2.html</link>
<pubDate>Sun, 01 Mar 2026 08:00:00 GMT</pubDate><description>Lợi nhuận</description></item>
<item><title>Old HPG story - CafeF</title><link>https://cafef.vn/old.chn</link>
<pubDate>Mon, 02 Feb 2026 08:00:00 GMT</pubDate></item>
</channel></rss>`

func TestGoogleNewsFetcher(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q") + "|" + r.URL.Query().Get("hl") + "|" + r.URL.Query().Get("ceid")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	}))
	defer srv.Close()

	f := NewGoogleNewsFetcher("vi", "VN", "", 20, 100)
	f.BaseURL = srv.URL

	since := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	items, err := f.FetchNews(context.Background(), "HPG", since)
	require.NoError(t, err)
	assert.Equal(t, "HPG cổ phiếu|vi|VN:vi", gotQuery)
	require.Len(t, items, 2)

	assert.Equal(t, "HPG", items[0].Symbol)
	assert.Equal(t, "HPG công bố chia cổ tức tiền mặt - CafeF", items[0].Title)
	assert.Equal(t, "CafeF", items[0].Source)
	assert.Equal(t, "Hòa Phát chia cổ tức", items[0].Description)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), items[0].PublishedAt)
	assert.Equal(t, "VnExpress", items[1].Source)
}

func TestGoogleNewsFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewGoogleNewsFetcher("vi", "VN", "", 20, 100)
	f.BaseURL = srv.URL
	_, err := f.FetchNews(context.Background(), "HPG", time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewsAPIFetcherKeyVariants(t *testing.T) {
	var auth, symbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		symbol = r.URL.Query().Get("symbol")
		assert.Equal(t, "/api/v1/news", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"title":"VNM ký hợp đồng xuất khẩu","link":"https://a/1","published_at":"2026-03-02T09:00:00+07:00"},
			{"news_title":"VNM chia cổ tức","news_source_link":"https://a/2","public_date":1772416800000},
			{"news_title":"missing link"},
			{"title":"VNM ký hợp đồng xuất khẩu","link":"https://a/dup"}
		]}`)
	}))
	defer srv.Close()

	f := NewNewsAPIFetcher(srv.URL+"/", "secret", "", 10, 100)
	items, err := f.FetchNews(context.Background(), "VNM", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "VNM", symbol)

	require.Len(t, items, 2)
	assert.Equal(t, "https://a/1", items[0].Link)
	assert.Equal(t, time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC), items[0].PublishedAt)
	assert.Equal(t, "VNM chia cổ tức", items[1].Title)
	assert.Equal(t, "https://a/2", items[1].Link)
	assert.Equal(t, time.UnixMilli(1772416800000).UTC(), items[1].PublishedAt)
}

func TestNewsAPIFetcherBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"title":"FPT mở rộng","url":"https://a/3","published":"2026-03-01 10:00:00"}]`)
	}))
	defer srv.Close()

	items, err := NewNewsAPIFetcher(srv.URL, "", "", 0, 100).FetchNews(context.Background(), "FPT", time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), items[0].PublishedAt)
}

func TestNewsAPIFetcherRequiresBaseURL(t *testing.T) {
	_, err := NewNewsAPIFetcher("", "", "", 0, 1).FetchNews(context.Background(), "FPT", time.Time{})
	assert.Error(t, err)
}

func TestFallbackFetcher(t *testing.T) {
	item := model.RawArticle{Title: "t", Link: "l", PublishedAt: time.Now()}
	failing := &MockFetcher{Errors: map[string]error{"HPG": errors.New("down")}}
	empty := &MockFetcher{Articles: map[string][]model.RawArticle{"HPG": nil}}
	good := &MockFetcher{Articles: map[string][]model.RawArticle{"HPG": {item}}}

	t.Run("falls through errors and empties", func(t *testing.T) {
		f := NewFallbackFetcher(logging.Discard(), failing, empty, good)
		items, err := f.FetchNews(context.Background(), "HPG", time.Time{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "mock>mock>mock", f.Name())
	})

	t.Run("stops at first result", func(t *testing.T) {
		second := &MockFetcher{Articles: map[string][]model.RawArticle{"HPG": {item}}}
		f := NewFallbackFetcher(logging.Discard(), good, nil, second)
		_, err := f.FetchNews(context.Background(), "HPG", time.Time{})
		require.NoError(t, err)
		assert.Empty(t, second.Calls)
	})

	t.Run("all failed", func(t *testing.T) {
		f := NewFallbackFetcher(logging.Discard(), failing)
		_, err := f.FetchNews(context.Background(), "HPG", time.Time{})
		assert.Error(t, err)
	})

	t.Run("failure then empty is not an error", func(t *testing.T) {
		f := NewFallbackFetcher(logging.Discard(), failing, empty)
		items, err := f.FetchNews(context.Background(), "HPG", time.Time{})
		assert.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestMockFetcherDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 25, 0, 0, time.UTC)
	m := &MockFetcher{Now: func() time.Time { return now }}
	a, err := m.FetchNews(context.Background(), "HPG", time.Time{})
	require.NoError(t, err)
	now = now.Add(20 * time.Minute)
	b, err := m.FetchNews(context.Background(), "HPG", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
	assert.Equal(t, []string{"HPG", "HPG"}, m.Calls)
}

func TestFinalize(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := []model.RawArticle{
		{Title: "  <b>Bold</b>   news ", Link: " https://x/1 ", PublishedAt: since.Add(time.Hour)},
		{Title: "old", Link: "https://x/2", PublishedAt: since.Add(-time.Hour)},
		{Title: "undated", Link: "https://x/3"},
		{Title: "", Link: "https://x/4"},
		{Title: "Bold news", Link: "https://x/5"},
		{Title: "extra", Link: "https://x/6"},
	}
	out := finalize("HPG", in, since, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "Bold news", out[0].Title)
	assert.Equal(t, "https://x/1", out[0].Link)
	assert.Equal(t, "undated", out[1].Title)
	assert.Equal(t, "HPG", out[1].Symbol)
}

func TestHTMLExtractor(t *testing.T) {
	paragraph := strings.Repeat("Hòa Phát báo lãi kỷ lục trong quý. ", 10)
	page := `<html><head><script>var x=1;</script></head><body>
		<nav>Menu Home</nav>
		<div class="detail-content"><h1>Tiêu đề</h1><p>` + paragraph + `</p><p>Second paragraph.</p></div>
		<footer>Copyright</footer></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	e := NewHTMLExtractor("", 100, 100, logging.Discard())
	text, err := e.Extract(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Contains(t, text, "Hòa Phát báo lãi")
	assert.NotContains(t, text, "Menu")
	assert.NotContains(t, text, "var x")
	assert.LessOrEqual(t, len([]rune(text)), 100)
}

func TestHTMLExtractorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewHTMLExtractor("", 0, 100, logging.Discard()).Extract(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestYahooMarketContext(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		var ts, closes []string
		start := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC).Unix()
		for i := 0; i < 40; i++ {
			ts = append(ts, fmt.Sprint(start+int64(i)*86400))
			closes = append(closes, fmt.Sprint(25000+i*100))
		}
		closes[5] = "null"
		fmt.Fprintf(w, `{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"open":[%s],"high":[%s],"low":[%s],"close":[%s],"volume":[]}]}}],"error":null}}`,
			strings.Join(ts, ","), strings.Join(closes, ","), strings.Join(closes, ","), strings.Join(closes, ","), strings.Join(closes, ","))
	}))
	defer srv.Close()

	y := NewYahooMarket(".VN", "", logging.Discard())
	y.BaseURL = srv.URL

	bars, err := y.DailyBars(context.Background(), "HPG")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/HPG.VN", path)
	assert.Len(t, bars, 39)

	got := y.Context(context.Background(), "HPG")
	assert.True(t, strings.HasPrefix(got, "Stock Price Today: 28900 (Change: 0.35%)"), got)
	assert.Contains(t, got, "RSI14: 100.0")
	assert.Contains(t, got, "SMA20:")
}

func TestYahooMarketUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer srv.Close()

	y := NewYahooMarket(".VN", "", logging.Discard())
	y.BaseURL = srv.URL
	assert.Equal(t, MarketUnavailable, y.Context(context.Background(), "ZZZ"))
	assert.Equal(t, "^VNINDEX", y.ticker("^VNINDEX"))
}
