package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimit.Quota != 20 {
		t.Errorf("expected quota 20, got %d", cfg.RateLimit.Quota)
	}
	if cfg.RateLimit.Window.Duration != time.Minute {
		t.Errorf("expected 60s window, got %v", cfg.RateLimit.Window)
	}
	if cfg.Schedule.Interval.Duration != 4*time.Hour {
		t.Errorf("expected 4h interval, got %v", cfg.Schedule.Interval)
	}
	if cfg.Cache.TTL.Duration != time.Hour {
		t.Errorf("expected 1h ttl, got %v", cfg.Cache.TTL)
	}
	if !cfg.News.FetchContent || !cfg.Market.Enabled {
		t.Error("expected content fetching and market context enabled by default")
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
schedule:
  interval: 2h
  lookback: 6h
rate_limit:
  quota: 10
  window: 30s
news:
  fetch_content: false
llm:
  provider: claude
  api_key: sk-test
watchlist: [hpg, " vnm ", HPG, ""]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Schedule.Interval.Duration != 2*time.Hour {
		t.Errorf("interval = %v", cfg.Schedule.Interval)
	}
	if cfg.Schedule.Lookback.Duration != 6*time.Hour {
		t.Errorf("lookback = %v", cfg.Schedule.Lookback)
	}
	if cfg.RateLimit.Quota != 10 || cfg.RateLimit.Window.Duration != 30*time.Second {
		t.Errorf("rate limit = %d/%v", cfg.RateLimit.Quota, cfg.RateLimit.Window)
	}
	if cfg.News.FetchContent {
		t.Error("fetch_content should be overridden to false")
	}
	if cfg.RateLimit.SafetyMargin.Duration != time.Second {
		t.Errorf("unset fields keep defaults, got margin %v", cfg.RateLimit.SafetyMargin)
	}
	want := []string{"HPG", "VNM"}
	if len(cfg.Watchlist) != len(want) {
		t.Fatalf("watchlist = %v", cfg.Watchlist)
	}
	for i := range want {
		if cfg.Watchlist[i] != want[i] {
			t.Errorf("watchlist[%d] = %q, want %q", i, cfg.Watchlist[i], want[i])
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
watchlist = ["FPT"]

[schedule]
interval = "90m"

[llm]
provider = "gemini"
api_key = "g-key"

[storage]
backend = "badger"
badger_path = "/tmp/sentinel"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Schedule.Interval.Duration != 90*time.Minute {
		t.Errorf("interval = %v", cfg.Schedule.Interval)
	}
	if cfg.Storage.Backend != "badger" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("SENTINEL_WATCHLIST", "hpg,vcb")
	t.Setenv("SENTINEL_INTERVAL", "1h")
	t.Setenv("API_ADDR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "anthropic-key" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Schedule.Interval.Duration != time.Hour {
		t.Errorf("interval = %v", cfg.Schedule.Interval)
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[1] != "VCB" {
		t.Errorf("watchlist = %v", cfg.Watchlist)
	}
	if cfg.API.Addr != "" {
		t.Errorf("API_ADDR set to empty should disable the API, got %q", cfg.API.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"zero quota", func(c *Config) { c.RateLimit.Quota = 0 }, true},
		{"zero window", func(c *Config) { c.RateLimit.Window = D(0) }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"api news without url", func(c *Config) { c.News.Provider = "api" }, true},
		{"zero interval without cron", func(c *Config) { c.Schedule.Interval = D(0) }, true},
		{"zero interval with cron", func(c *Config) {
			c.Schedule.Interval = D(0)
			c.Schedule.Cron = "0 */4 * * *"
		}, false},
		{"telegram half configured", func(c *Config) { c.Telegram.BotToken = "x" }, true},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.LLM.APIKey = "key"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
