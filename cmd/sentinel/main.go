package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NewsSentinel/internal/aggregate"
	"NewsSentinel/internal/analysis"
	"NewsSentinel/internal/api"
	"NewsSentinel/internal/cache"
	"NewsSentinel/internal/collector"
	"NewsSentinel/internal/config"
	"NewsSentinel/internal/llm"
	"NewsSentinel/internal/logging"
	"NewsSentinel/internal/notifier"
	"NewsSentinel/internal/pipeline"
	"NewsSentinel/internal/ratelimit"
	"NewsSentinel/internal/scheduler"
	"NewsSentinel/internal/store"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	banner.PrintSimple("NewsSentinel", version)

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	// Console-only logger until the logging section is known
	tempLogger := logging.New(logging.Config{})
	cfg, err := config.Load(cfgPath)
	if err != nil {
		tempLogger.Fatal().Str("path", cfgPath).Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		tempLogger.Fatal().Str("path", cfgPath).Err(err).Msg("Invalid config")
	}

	logger := logging.New(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("NewsSentinel stopped with error")
	}
}

func run(cfg *config.Config, logger arbor.ILogger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, symbol := range cfg.Watchlist {
		if _, err := st.AddWatch(ctx, store.NormalizeSymbol(symbol)); err != nil {
			return fmt.Errorf("seed watchlist: %w", err)
		}
	}

	fetcher := newFetcher(cfg, logger)
	logger.Info().Str("fetcher", fetcher.Name()).Msg("News source ready")

	client, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLM.Timeout.Duration,
		MaxRetries:  cfg.LLM.MaxRetries,
		Temperature: cfg.LLM.Temperature,
	}, logger)
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}
	logger.Info().Str("llm", client.Name()).Msg("LLM client ready")

	gate := ratelimit.New(
		ratelimit.WithQuota(cfg.RateLimit.Quota),
		ratelimit.WithWindow(cfg.RateLimit.Window.Duration),
		ratelimit.WithSafetyMargin(cfg.RateLimit.SafetyMargin.Duration),
		ratelimit.WithNearLimitThreshold(cfg.RateLimit.NearLimitThreshold),
		ratelimit.WithLogger(logger),
	)

	agg := aggregate.New(st, analysis.NewNarrator(client, logger), aggregate.Config{
		TrendThreshold:       cfg.Aggregate.TrendThreshold,
		VolatilityThreshold:  cfg.Aggregate.VolatilityThreshold,
		TopThemes:            cfg.Aggregate.TopThemes,
		MinNarrativeArticles: cfg.Aggregate.MinNarrativeArticles,
	}, logger)

	deps := pipeline.Deps{
		Store:      st,
		Fetcher:    fetcher,
		Scorer:     analysis.NewScorer(client, logger),
		Gate:       gate,
		Cache:      cache.New(cfg.Cache.TTL.Duration),
		Aggregator: agg,
		Logger:     logger,
	}
	if cfg.News.FetchContent {
		deps.Extractor = collector.NewHTMLExtractor(cfg.Proxy, cfg.News.ContentMaxChars, cfg.News.RequestsPerSecond, logger)
	}
	if cfg.Market.Enabled {
		deps.Market = collector.NewYahooMarket(cfg.Market.SymbolSuffix, cfg.Proxy, logger)
	} else {
		deps.Market = collector.StaticMarket(collector.MarketUnavailable)
	}
	orch := pipeline.New(deps, pipeline.Config{Lookback: cfg.Schedule.Lookback.Duration, Location: loc})

	// Init Telegram notifier. The scheduler must see a nil interface when it is off.
	var (
		notify scheduler.Notifier
		tn     *notifier.TelegramNotifier
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		notify = tn
	} else {
		logger.Warn().Msg("Telegram not configured, notifications disabled")
	}

	sched := scheduler.New(ctx, orch, st, notify, scheduler.Config{
		Interval:     cfg.Schedule.Interval.Duration,
		Cron:         cfg.Schedule.Cron,
		StartupDelay: cfg.Schedule.StartupDelay.Duration,
		Location:     loc,
	}, logger)
	if err := sched.Register(); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info().Msg("Telegram polling started")
	}

	var srv *api.Server
	srvErr := make(chan error, 1)
	if cfg.API.Addr != "" {
		srv = api.New(cfg.API.Addr, st, orch, sched, loc, logger)
		go func() { srvErr <- srv.ListenAndServe() }()
	}

	logger.Info().Strs("watchlist", cfg.Watchlist).Msg("NewsSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		logger.Info().Str("signal", s.String()).Msg("Shutdown signal received, stopping...")
	case err := <-srvErr:
		if err != nil {
			logger.Error().Err(err).Msg("API server failed, stopping...")
		}
	}

	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("API server shutdown")
		}
	}
	logger.Info().Msg("NewsSentinel stopped")
	return nil
}

func openStore(cfg *config.Config, logger arbor.ILogger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "badger":
		return store.NewBadgerStore(cfg.Storage.BadgerPath, logger)
	case "memory":
		logger.Warn().Msg("Using in-memory storage, nothing survives a restart")
		return store.NewMemoryStore(), nil
	default:
		return store.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	}
}

func newFetcher(cfg *config.Config, logger arbor.ILogger) collector.Fetcher {
	google := collector.NewGoogleNewsFetcher(cfg.News.Language, cfg.News.Region, cfg.Proxy, cfg.News.Limit, cfg.News.RequestsPerSecond)
	switch cfg.News.Provider {
	case "api":
		return collector.NewFallbackFetcher(logger,
			collector.NewNewsAPIFetcher(cfg.News.APIBaseURL, cfg.News.APIKey, cfg.Proxy, cfg.News.Limit, cfg.News.RequestsPerSecond),
			google,
		)
	case "mock":
		return &collector.MockFetcher{Count: cfg.News.Limit}
	default:
		return google
	}
}
