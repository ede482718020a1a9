package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"NewsSentinel/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Schedule struct {
		Interval     Duration `yaml:"interval" toml:"interval"`
		StartupDelay Duration `yaml:"startup_delay" toml:"startup_delay"`
		Cron         string   `yaml:"cron" toml:"cron"`
		Lookback     Duration `yaml:"lookback" toml:"lookback"`
		Timezone     string   `yaml:"timezone" toml:"timezone"`
	} `yaml:"schedule" toml:"schedule"`
	RateLimit struct {
		Quota              int      `yaml:"quota" toml:"quota" validate:"gt=0"`
		Window             Duration `yaml:"window" toml:"window"`
		SafetyMargin       Duration `yaml:"safety_margin" toml:"safety_margin"`
		NearLimitThreshold int      `yaml:"near_limit_threshold" toml:"near_limit_threshold" validate:"gte=0"`
	} `yaml:"rate_limit" toml:"rate_limit"`
	Cache struct {
		TTL Duration `yaml:"ttl" toml:"ttl"`
	} `yaml:"cache" toml:"cache"`
	News struct {
		Provider          string  `yaml:"provider" toml:"provider" validate:"oneof=google api mock"`
		APIBaseURL        string  `yaml:"api_base_url" toml:"api_base_url"`
		APIKey            string  `yaml:"api_key" toml:"api_key"`
		Limit             int     `yaml:"limit" toml:"limit" validate:"gt=0"`
		Language          string  `yaml:"language" toml:"language"`
		Region            string  `yaml:"region" toml:"region"`
		RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" validate:"gt=0"`
		FetchContent      bool    `yaml:"fetch_content" toml:"fetch_content"`
		ContentMaxChars   int     `yaml:"content_max_chars" toml:"content_max_chars" validate:"gt=0"`
	} `yaml:"news" toml:"news"`
	Market struct {
		Enabled      bool   `yaml:"enabled" toml:"enabled"`
		SymbolSuffix string `yaml:"symbol_suffix" toml:"symbol_suffix"`
	} `yaml:"market" toml:"market"`
	LLM struct {
		Provider    string   `yaml:"provider" toml:"provider" validate:"oneof=gemini claude"`
		Model       string   `yaml:"model" toml:"model"`
		APIKey      string   `yaml:"api_key" toml:"api_key" validate:"required"`
		Timeout     Duration `yaml:"timeout" toml:"timeout"`
		MaxRetries  int      `yaml:"max_retries" toml:"max_retries" validate:"gte=0"`
		Temperature float64  `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	} `yaml:"llm" toml:"llm"`
	Aggregate struct {
		TrendThreshold       float64 `yaml:"trend_threshold" toml:"trend_threshold" validate:"gte=0"`
		VolatilityThreshold  float64 `yaml:"volatility_threshold" toml:"volatility_threshold" validate:"gte=0"`
		TopThemes            int     `yaml:"top_themes" toml:"top_themes" validate:"gt=0"`
		MinNarrativeArticles int     `yaml:"min_narrative_articles" toml:"min_narrative_articles" validate:"gte=0"`
	} `yaml:"aggregate" toml:"aggregate"`
	Storage struct {
		Backend    string `yaml:"backend" toml:"backend" validate:"oneof=sqlite badger memory"`
		SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
		BadgerPath string `yaml:"badger_path" toml:"badger_path"`
	} `yaml:"storage" toml:"storage"`
	API struct {
		Addr string `yaml:"addr" toml:"addr"`
	} `yaml:"api" toml:"api"`
	Telegram struct {
		BotToken string `yaml:"bot_token" toml:"bot_token"`
		ChatID   string `yaml:"chat_id" toml:"chat_id"`
	} `yaml:"telegram" toml:"telegram"`
	Logging   logging.Config `yaml:"logging" toml:"logging"`
	Watchlist []string       `yaml:"watchlist" toml:"watchlist"`
	Proxy     string         `yaml:"proxy" toml:"proxy"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Schedule.Interval = D(4 * time.Hour)
	cfg.Schedule.StartupDelay = D(30 * time.Second)
	cfg.Schedule.Lookback = D(24 * time.Hour)
	cfg.Schedule.Timezone = "Local"

	cfg.RateLimit.Quota = 20
	cfg.RateLimit.Window = D(60 * time.Second)
	cfg.RateLimit.SafetyMargin = D(time.Second)
	cfg.RateLimit.NearLimitThreshold = 5

	cfg.Cache.TTL = D(time.Hour)

	cfg.News.Provider = "google"
	cfg.News.Limit = 20
	cfg.News.Language = "vi"
	cfg.News.Region = "VN"
	cfg.News.RequestsPerSecond = 2
	cfg.News.FetchContent = true
	cfg.News.ContentMaxChars = 2000

	cfg.Market.Enabled = true
	cfg.Market.SymbolSuffix = ".VN"

	cfg.LLM.Provider = "gemini"
	cfg.LLM.Timeout = D(60 * time.Second)
	cfg.LLM.MaxRetries = 3
	cfg.LLM.Temperature = 0.2

	cfg.Aggregate.TrendThreshold = 0.5
	cfg.Aggregate.VolatilityThreshold = 0.6
	cfg.Aggregate.TopThemes = 5
	cfg.Aggregate.MinNarrativeArticles = 3

	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = "data/news_sentinel.db"
	cfg.Storage.BadgerPath = "data/badger"

	cfg.API.Addr = ":8090"
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads config from a YAML or TOML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		default:
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.normalize()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SENTINEL_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("SENTINEL_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "gemini":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("NEWS_API_BASE_URL"); v != "" {
		cfg.News.APIBaseURL = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.News.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SENTINEL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Schedule.Interval = D(d)
		}
	}
	if v := os.Getenv("SENTINEL_WATCHLIST"); v != "" {
		cfg.Watchlist = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("API_ADDR"); ok {
		cfg.API.Addr = v
	}
}

func (c *Config) normalize() {
	symbols := make([]string, 0, len(c.Watchlist))
	seen := make(map[string]bool)
	for _, s := range c.Watchlist {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	c.Watchlist = symbols
	c.News.Provider = strings.ToLower(c.News.Provider)
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.RateLimit.Window.Duration <= 0 {
		return fmt.Errorf("rate_limit.window must be positive")
	}
	if c.RateLimit.SafetyMargin.Duration < 0 {
		return fmt.Errorf("rate_limit.safety_margin must not be negative")
	}
	if c.Cache.TTL.Duration <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Schedule.Cron == "" && c.Schedule.Interval.Duration <= 0 {
		return fmt.Errorf("schedule.interval must be positive when schedule.cron is empty")
	}
	if c.Schedule.Lookback.Duration <= 0 {
		return fmt.Errorf("schedule.lookback must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if c.News.Provider == "api" && c.News.APIBaseURL == "" {
		return fmt.Errorf("news.api_base_url is required for the api provider")
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
	}
	if c.Storage.Backend == "badger" && c.Storage.BadgerPath == "" {
		return fmt.Errorf("storage.badger_path is required for the badger backend")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// Location resolves the configured timezone used for ISO week boundaries.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}

// TelegramEnabled reports whether signal delivery over Telegram is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
