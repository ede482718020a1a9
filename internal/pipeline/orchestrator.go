package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"NewsSentinel/internal/aggregate"
	"NewsSentinel/internal/cache"
	"NewsSentinel/internal/collector"
	"NewsSentinel/internal/model"
	"NewsSentinel/internal/ratelimit"
	"NewsSentinel/internal/signals"
	"NewsSentinel/internal/store"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// ErrRunInProgress is returned by Run when another pass has not finished yet.
var ErrRunInProgress = errors.New("a run is already in progress")

// Scorer scores one candidate article. It is the quota-limited upstream behind the gate.
type Scorer interface {
	Score(ctx context.Context, symbol string, article model.RawArticle, marketContext string) (model.ScoreResult, error)
}

// WeekAggregator rebuilds the weekly summary for a symbol.
type WeekAggregator interface {
	Aggregate(ctx context.Context, symbol string, week aggregate.Week) (*model.WeeklySummary, error)
}

// Deps are the collaborators of an Orchestrator. Extractor is optional; a nil Market
// reports collector.MarketUnavailable.
type Deps struct {
	Store      store.Store
	Fetcher    collector.Fetcher
	Scorer     Scorer
	Extractor  collector.ContentExtractor
	Market     collector.MarketContext
	Gate       *ratelimit.Gate
	Cache      *cache.ArticleCache
	Aggregator WeekAggregator
	Logger     arbor.ILogger

	Now   func() time.Time
	NewID func() string
}

// Config tunes a pass.
type Config struct {
	Lookback time.Duration  // candidates published before now-Lookback are ignored
	Location *time.Location // week boundaries
}

// Orchestrator runs the analysis pipeline. Symbols and articles are processed strictly
// in sequence so the gate sees a single caller.
type Orchestrator struct {
	deps Deps
	cfg  Config

	runMu   sync.Mutex
	running atomic.Bool

	mu   sync.RWMutex
	last *model.RunReport
}

// New wires an Orchestrator. A nil Gate or Cache gets the default policy.
func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	if deps.Gate == nil {
		deps.Gate = ratelimit.New(ratelimit.WithLogger(deps.Logger))
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.DefaultTTL)
	}
	if deps.Market == nil {
		deps.Market = collector.StaticMarket(collector.MarketUnavailable)
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// Run executes one pass over the watchlist.
//
// Per-symbol fetch failures and per-article score failures are logged and skipped.
// Storage errors abort the pass and are returned together with the partial report.
func (o *Orchestrator) Run(ctx context.Context) (*model.RunReport, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer o.runMu.Unlock()
	o.running.Store(true)
	defer o.running.Store(false)

	report := &model.RunReport{
		RunID:     o.deps.NewID(),
		StartedAt: o.deps.Now(),
	}
	logger := o.deps.Logger

	err := o.run(ctx, report)
	report.FinishedAt = o.deps.Now()
	if err != nil {
		report.Err = err.Error()
		logger.Error().Err(err).Str("run_id", report.RunID).Msg("Pipeline pass aborted")
	} else {
		logger.Info().
			Str("run_id", report.RunID).
			Int("symbols", report.Symbols).
			Int("inserted", report.Inserted).
			Int("signals", len(report.Signals)).
			Int("cache_hits", report.CacheHits).
			Int("failed", report.Failed).
			Dur("duration", report.Duration()).
			Msg("Pipeline pass finished")
	}

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, report *model.RunReport) error {
	symbols, err := o.deps.Store.WatchlistSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}
	report.Symbols = len(symbols)

	gate := o.deps.Gate.Snapshot()
	o.deps.Logger.Info().
		Str("run_id", report.RunID).
		Strs("symbols", symbols).
		Int("gate_in_window", gate.CallsInWindow).
		Int("gate_remaining", gate.Remaining).
		Msg("Pipeline pass started")

	if len(symbols) == 0 {
		o.deps.Logger.Warn().Msg("Watchlist is empty, nothing to analyze")
		return nil
	}

	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.deps.Logger.Info().Str("symbol", symbol).Msgf("[%d/%d] Processing symbol", i+1, len(symbols))
		if err := o.processSymbol(ctx, symbol, report); err != nil {
			return err
		}
	}
	return nil
}

// processSymbol returns only errors that must abort the pass.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string, report *model.RunReport) error {
	logger := o.deps.Logger
	since := o.deps.Now().Add(-o.cfg.Lookback)

	if err := o.deps.Gate.Admit(ctx); err != nil {
		return err
	}
	candidates, err := o.deps.Fetcher.FetchNews(ctx, symbol, since)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Str("symbol", symbol).Err(err).Msg("Fetch failed, skipping symbol")
		report.FetchFails = append(report.FetchFails, symbol)
		return nil
	}
	report.Candidates += len(candidates)

	fresh := make([]model.RawArticle, 0, len(candidates))
	for _, raw := range candidates {
		if raw.PublishedAt.IsZero() {
			logger.Debug().Str("symbol", symbol).Str("title", raw.Title).Msg("Candidate has no published time, skipping")
			report.Undated++
			continue
		}
		exists, err := o.deps.Store.ArticleExists(ctx, symbol, raw.Title, raw.PublishedAt)
		if err != nil {
			return fmt.Errorf("check article for %s: %w", symbol, err)
		}
		if exists {
			report.Duplicates++
			continue
		}
		fresh = append(fresh, raw)
	}
	if len(fresh) == 0 {
		logger.Info().Str("symbol", symbol).Int("candidates", len(candidates)).Msg("No new articles")
		return nil
	}
	logger.Info().Str("symbol", symbol).Int("new", len(fresh)).Msg("Found new articles to analyze")

	marketCtx, err := o.marketContext(ctx, symbol)
	if err != nil {
		return err
	}

	// the current week is always refreshed once anything new lands; older weeks only when touched
	current := aggregate.WeekOf(o.deps.Now(), o.cfg.Location)
	weeks := make(map[int64]aggregate.Week)
	for idx, raw := range fresh {
		raw.Symbol = symbol
		art, ok, err := o.analyze(ctx, symbol, raw, marketCtx, report)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		inserted, err := o.deps.Store.InsertArticle(ctx, &art)
		if err != nil {
			return fmt.Errorf("store article for %s: %w", symbol, err)
		}
		if !inserted {
			report.Duplicates++
			continue
		}
		report.Inserted++
		weeks[current.Start.Unix()] = current
		if !current.Contains(art.PublishedAt) {
			week := aggregate.WeekOf(art.PublishedAt, o.cfg.Location)
			weeks[week.Start.Unix()] = week
		}

		logger.Info().
			Str("symbol", symbol).
			Str("sentiment", string(art.Sentiment)).
			Int("score", art.Score).
			Bool("relevant", art.IsRelevant).
			Msgf("[%d/%d] %s", idx+1, len(fresh), art.Title)

		if err := o.detectSignal(ctx, art, report); err != nil {
			return err
		}
	}

	for _, week := range sortedWeeks(weeks) {
		if _, err := o.deps.Aggregator.Aggregate(ctx, symbol, week); err != nil {
			return fmt.Errorf("aggregate %s: %w", symbol, err)
		}
		report.Summaries = append(report.Summaries, symbol+" "+week.String())
	}
	return nil
}

// analyze returns the candidate combined with its score. ok is false when the
// article was skipped because scoring failed.
func (o *Orchestrator) analyze(ctx context.Context, symbol string, raw model.RawArticle, marketCtx string, report *model.RunReport) (model.AnalyzedArticle, bool, error) {
	logger := o.deps.Logger

	res, hit := o.deps.Cache.Get(symbol, raw.Title)
	if hit {
		report.CacheHits++
		logger.Debug().Str("symbol", symbol).Str("title", raw.Title).Msg("Score served from cache")
	} else {
		if o.deps.Extractor != nil && raw.Content == "" {
			if content, err := o.deps.Extractor.Extract(ctx, raw.Link); err != nil {
				logger.Debug().Str("link", raw.Link).Err(err).Msg("Body extraction failed, using description")
			} else {
				raw.Content = content
			}
		}

		if err := o.deps.Gate.Admit(ctx); err != nil {
			return model.AnalyzedArticle{}, false, err
		}
		var err error
		res, err = o.deps.Scorer.Score(ctx, symbol, raw, marketCtx)
		if err != nil {
			if ctx.Err() != nil {
				return model.AnalyzedArticle{}, false, ctx.Err()
			}
			report.Failed++
			logger.Warn().Str("symbol", symbol).Str("title", raw.Title).Err(err).Msg("Scoring failed, skipping article")
			return model.AnalyzedArticle{}, false, nil
		}
		report.Scored++
		o.deps.Cache.Set(symbol, raw.Title, res)
	}

	return model.NewAnalyzedArticle(raw, res, o.deps.Now()), true, nil
}

func (o *Orchestrator) detectSignal(ctx context.Context, art model.AnalyzedArticle, report *model.RunReport) error {
	sig, ok := signals.Detect(art)
	if !ok {
		return nil
	}
	sig.ID = o.deps.NewID()
	inserted, err := o.deps.Store.InsertSignal(ctx, sig)
	if err != nil {
		return fmt.Errorf("store signal for %s: %w", art.Symbol, err)
	}
	if inserted {
		report.Signals = append(report.Signals, *sig)
		o.deps.Logger.Info().
			Str("symbol", sig.Symbol).
			Str("type", string(sig.Type)).
			Str("priority", string(sig.Priority)).
			Msg("Signal detected")
	}
	return nil
}

// marketContext is fetched once per symbol and counts against the gate like any upstream call.
// A static context makes no call and costs nothing.
func (o *Orchestrator) marketContext(ctx context.Context, symbol string) (string, error) {
	if static, ok := o.deps.Market.(collector.StaticMarket); ok {
		return string(static), nil
	}
	if err := o.deps.Gate.Admit(ctx); err != nil {
		return "", err
	}
	return o.deps.Market.Context(ctx, symbol), nil
}

func sortedWeeks(weeks map[int64]aggregate.Week) []aggregate.Week {
	out := make([]aggregate.Week, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// PurgeCache drops every cached score and reports how many live entries were removed.
// Like Invalidate it leaves the gate alone.
func (o *Orchestrator) PurgeCache() int {
	keys := o.deps.Cache.Keys()
	o.deps.Cache.Purge()
	o.deps.Logger.Info().Int("entries", len(keys)).Strs("keys", keys).Msg("Score cache purged")
	return len(keys)
}

// Invalidate drops the cached score for one article so the next pass scores it again.
// It does not touch the gate's accounting.
func (o *Orchestrator) Invalidate(symbol, title string) bool {
	return o.deps.Cache.Delete(store.NormalizeSymbol(symbol), title)
}

// Running reports whether a pass is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// LastReport is the report of the most recent pass, or nil before the first one.
func (o *Orchestrator) LastReport() *model.RunReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	r := *o.last
	return &r
}

// Status is the read-only view exposed to the API and Telegram.
func (o *Orchestrator) Status() model.Status {
	return model.Status{
		RateLimit: o.deps.Gate.Snapshot(),
		Cache:     o.deps.Cache.Stats(),
		Running:   o.Running(),
		LastRun:   o.LastReport(),
	}
}

// ResetRateLimit clears the gate's call history.
func (o *Orchestrator) ResetRateLimit() {
	o.deps.Gate.Reset()
	o.deps.Logger.Info().Msg("Rate limiter reset")
}
