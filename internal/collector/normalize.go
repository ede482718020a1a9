package collector

import (
	"strings"
	"time"

	"NewsSentinel/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// finalize cleans fetched items in arrival order: markup is stripped, items without a
// title or link are dropped, as are items published before since and repeated titles.
// Items with no published time are kept; the pipeline decides what to do with them.
func finalize(symbol string, items []model.RawArticle, since time.Time, limit int) []model.RawArticle {
	out := make([]model.RawArticle, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it.Symbol = symbol
		it.Title = collapseSpace(stripHTML(it.Title))
		it.Description = collapseSpace(stripHTML(it.Description))
		it.Link = strings.TrimSpace(it.Link)
		if it.Title == "" || it.Link == "" {
			continue
		}
		if !it.PublishedAt.IsZero() && !since.IsZero() && it.PublishedAt.Before(since) {
			continue
		}
		if seen[it.Title] {
			continue
		}
		seen[it.Title] = true
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// stripHTML returns the text content of an HTML fragment.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
