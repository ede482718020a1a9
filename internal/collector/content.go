package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// DefaultContentMaxChars bounds the extracted body handed to the scorer.
const DefaultContentMaxChars = 2000

const maxPageBytes = 4 << 20

// bodySelectors are tried in order; the first with enough text wins.
var bodySelectors = []string{
	"article",
	"[itemprop='articleBody']",
	".detail-content",
	".fck_detail",
	".article-content",
	".content-detail",
	".knc-content",
	"main",
}

var noiseSelectors = "script, style, noscript, nav, header, footer, aside, form, iframe, figure, .advertisement, .related"

const minBodyChars = 200

// HTMLExtractor implements ContentExtractor by downloading the page and keeping the main body.
type HTMLExtractor struct {
	Client   *http.Client
	MaxChars int

	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewHTMLExtractor creates an extractor. rps throttles page downloads.
func NewHTMLExtractor(proxyURL string, maxChars int, rps float64, logger arbor.ILogger) *HTMLExtractor {
	if maxChars <= 0 {
		maxChars = DefaultContentMaxChars
	}
	if rps <= 0 {
		rps = 2
	}
	return &HTMLExtractor{
		Client:   newHTTPClient(proxyURL, 20*time.Second),
		MaxChars: maxChars,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		logger:   logger,
	}
}

func (e *HTMLExtractor) Extract(ctx context.Context, link string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download article: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download article: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read article: %w", err)
	}

	text, err := extractBody(string(body), baseURL(resp.Request.URL))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no article body found")
	}
	return truncateRunes(text, e.MaxChars), nil
}

// extractBody selects the main content block of a page and renders it as markdown text.
func extractBody(html, base string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelectors).Remove()

	sel := doc.Find("body")
	for _, s := range bodySelectors {
		found := doc.Find(s).First()
		if found.Length() > 0 && len(strings.TrimSpace(found.Text())) >= minBodyChars {
			sel = found
			break
		}
	}

	fragment, err := sel.Html()
	if err != nil || strings.TrimSpace(fragment) == "" {
		return collapseSpace(sel.Text()), nil
	}

	converter := md.NewConverter(base, true, nil)
	converted, err := converter.ConvertString(fragment)
	if err != nil {
		return collapseSpace(sel.Text()), nil
	}
	return tidyMarkdown(converted), nil
}

// tidyMarkdown collapses runs of blank lines and trailing spaces.
func tidyMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func baseURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
