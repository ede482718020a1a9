package signals

import (
	"fmt"
	"strings"

	"NewsSentinel/internal/model"
)

// Detect evaluates the rule table against one scored article. It is pure: the returned
// signal has no ID and is timestamped from the article's AnalyzedAt.
// Articles marked irrelevant never produce a signal.
func Detect(a model.AnalyzedArticle) (*model.Signal, bool) {
	return detectWith(table, &a)
}

func detectWith(rules []Rule, a *model.AnalyzedArticle) (*model.Signal, bool) {
	if !a.IsRelevant {
		return nil, false
	}
	title := strings.ToLower(a.Title)

	for i := range rules {
		r := &rules[i]
		if !containsAny(title, r.Keywords) || !r.Applies(a) {
			continue
		}
		sig := &model.Signal{
			Symbol:      a.Symbol,
			Type:        r.Type,
			Priority:    r.Priority(a.Score),
			Title:       fmt.Sprintf("%s: %s", a.Symbol, r.Label),
			Description: a.Summary,
			DetectedAt:  a.AnalyzedAt,
			ArticleID:   a.ID,
		}
		if sig.Description == "" {
			sig.Description = a.Title
		}
		if r.TTL > 0 {
			exp := a.AnalyzedAt.Add(r.TTL)
			sig.ExpiresAt = &exp
		}
		return sig, true
	}
	return nil, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
