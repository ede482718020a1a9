package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"NewsSentinel/internal/model"
	"NewsSentinel/internal/store"

	"github.com/ternarybob/arbor"
)

// Narrator produces the momentum and outlook text for a week of articles.
type Narrator interface {
	SummarizeWeek(ctx context.Context, symbol string, articles []model.AnalyzedArticle) (model.WeekNarrative, error)
}

type Config struct {
	TrendThreshold       float64 // mean score delta that counts as a move
	VolatilityThreshold  float64 // variance of sentiment values (+1/0/-1)
	TopThemes            int
	MinNarrativeArticles int
}

func DefaultConfig() Config {
	return Config{
		TrendThreshold:       0.5,
		VolatilityThreshold:  0.6,
		TopThemes:            5,
		MinNarrativeArticles: 3,
	}
}

// Aggregator rolls a symbol's week of analyzed articles into one WeeklySummary row.
type Aggregator struct {
	store    store.Store
	narrator Narrator
	cfg      Config
	logger   arbor.ILogger
	now      func() time.Time
}

// New creates an Aggregator. narrator may be nil, in which case narratives stay empty.
func New(st store.Store, narrator Narrator, cfg Config, logger arbor.ILogger) *Aggregator {
	def := DefaultConfig()
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = def.TrendThreshold
	}
	if cfg.VolatilityThreshold <= 0 {
		cfg.VolatilityThreshold = def.VolatilityThreshold
	}
	if cfg.TopThemes <= 0 {
		cfg.TopThemes = def.TopThemes
	}
	if cfg.MinNarrativeArticles <= 0 {
		cfg.MinNarrativeArticles = def.MinNarrativeArticles
	}
	return &Aggregator{store: st, narrator: narrator, cfg: cfg, logger: logger, now: time.Now}
}

// Aggregate recomputes and replaces the summary for (symbol, week).
// Only storage errors are returned; a failed narrative leaves the text fields empty.
func (a *Aggregator) Aggregate(ctx context.Context, symbol string, week Week) (*model.WeeklySummary, error) {
	articles, err := a.store.ArticlesBetween(ctx, symbol, week.Start, week.End)
	if err != nil {
		return nil, fmt.Errorf("load week %s for %s: %w", week, symbol, err)
	}

	sum := &model.WeeklySummary{
		Symbol:        symbol,
		WeekStart:     week.Start,
		WeekEnd:       week.LastDay(),
		TotalArticles: len(articles),
		Trend:         model.TrendStable,
		GeneratedAt:   a.now(),
	}

	if len(articles) > 0 {
		var total int
		for _, art := range articles {
			total += art.Score
			switch art.Sentiment {
			case model.SentimentBullish:
				sum.BullishCount++
			case model.SentimentBearish:
				sum.BearishCount++
			default:
				sum.NeutralCount++
			}
		}
		sum.AvgScore = math.Round(float64(total)/float64(len(articles))*100) / 100

		prevMean, hasPrev, err := a.previousMean(ctx, symbol, week)
		if err != nil {
			return nil, err
		}
		sum.Trend = classifyTrend(sum.AvgScore, prevMean, hasPrev, sentimentVariance(articles), a.cfg)
		sum.Themes = rankThemes(articles, a.cfg.TopThemes)

		if a.narrator != nil && len(articles) >= a.cfg.MinNarrativeArticles {
			narrative, err := a.narrator.SummarizeWeek(ctx, symbol, articles)
			if err != nil {
				a.logger.Warn().Err(err).Str("symbol", symbol).Str("week", week.String()).Msg("Weekly narrative failed, leaving it empty")
			} else {
				sum.MomentumShift = narrative.MomentumShift
				sum.Outlook = narrative.Outlook
				if len(sum.Themes) == 0 {
					sum.Themes = limit(narrative.Themes, a.cfg.TopThemes)
				}
			}
		}
	}

	if err := a.store.UpsertWeeklySummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("save week %s for %s: %w", week, symbol, err)
	}

	a.logger.Info().
		Str("symbol", symbol).
		Str("week", week.String()).
		Int("articles", sum.TotalArticles).
		Str("trend", string(sum.Trend)).
		Msgf("Weekly summary updated (avg score %.1f)", sum.AvgScore)
	return sum, nil
}

func (a *Aggregator) previousMean(ctx context.Context, symbol string, week Week) (float64, bool, error) {
	prev, err := a.store.WeeklySummary(ctx, symbol, week.Prev().Start)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load previous week for %s: %w", symbol, err)
	}
	if prev.TotalArticles == 0 {
		return 0, false, nil
	}
	return prev.AvgScore, true, nil
}

func classifyTrend(mean, prevMean float64, hasPrev bool, variance float64, cfg Config) model.TrendDirection {
	if hasPrev {
		delta := mean - prevMean
		switch {
		case delta > cfg.TrendThreshold:
			return model.TrendImproving
		case delta < -cfg.TrendThreshold:
			return model.TrendDeclining
		}
	}
	if variance > cfg.VolatilityThreshold {
		return model.TrendVolatile
	}
	return model.TrendStable
}

// sentimentVariance is the population variance of +1 (bullish), 0 (neutral), -1 (bearish).
func sentimentVariance(articles []model.AnalyzedArticle) float64 {
	if len(articles) == 0 {
		return 0
	}
	values := make([]float64, len(articles))
	var mean float64
	for i, art := range articles {
		switch art.Sentiment {
		case model.SentimentBullish:
			values[i] = 1
		case model.SentimentBearish:
			values[i] = -1
		}
		mean += values[i]
	}
	mean /= float64(len(values))

	var v float64
	for _, x := range values {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(values))
}

// rankThemes orders key drivers by frequency (case-insensitive); ties keep first appearance.
func rankThemes(articles []model.AnalyzedArticle, n int) []string {
	type theme struct {
		text  string
		count int
	}
	byKey := make(map[string]*theme)
	var order []*theme
	for _, art := range articles {
		for _, d := range art.KeyDrivers {
			text := strings.TrimSpace(d)
			if text == "" {
				continue
			}
			key := strings.ToLower(text)
			if t, ok := byKey[key]; ok {
				t.count++
				continue
			}
			t := &theme{text: text, count: 1}
			byKey[key] = t
			order = append(order, t)
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].count > order[j].count })

	out := make([]string, 0, n)
	for _, t := range order {
		if len(out) == n {
			break
		}
		out = append(out, t.text)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func limit(list []string, n int) []string {
	if len(list) > n {
		return append([]string(nil), list[:n]...)
	}
	return list
}
