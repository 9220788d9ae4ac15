package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with defaults failed: %v", err)
	}

	if cfg.App.Name != "pricewatcher" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Fetch.CacheTTL != 12*time.Second {
		t.Fatalf("want cache_ttl 12s, got %s", cfg.Fetch.CacheTTL)
	}
	if cfg.Fetch.HistoryCap != 1000 {
		t.Fatalf("want history_cap 1000, got %d", cfg.Fetch.HistoryCap)
	}
	if cfg.Fetch.MovingAverageWindow != 5 || cfg.Fetch.CrossHistoryWindow != 5 {
		t.Fatal("analysis windows should default to 5")
	}
	if cfg.Fetch.LargeSpreadThreshold != 0.20 || cfg.Fetch.SourceDeviationThreshold != 0.10 {
		t.Fatal("cross-validation thresholds should default to 0.20 and 0.10")
	}
	if cfg.Alerting.ThresholdPct != 0.5 {
		t.Fatalf("want alert threshold 0.5, got %v", cfg.Alerting.ThresholdPct)
	}
	if cfg.Alerting.Cooldown != 5*time.Minute {
		t.Fatalf("want cooldown 5m, got %s", cfg.Alerting.Cooldown)
	}
	if cfg.Alerting.MaxPerHour != 5 {
		t.Fatalf("want max_per_hour 5, got %d", cfg.Alerting.MaxPerHour)
	}
	if cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("want interval 1m, got %s", cfg.Scheduler.Interval)
	}
	if len(cfg.Fetch.Symbols) == 0 {
		t.Fatal("default symbol list must not be empty")
	}
}

func TestLoadSecretsFromEnvironment(t *testing.T) {
	t.Setenv("PRICEWATCHER_ALPHA_VANTAGE_API_KEY", "envkey")
	t.Setenv("PRICEWATCHER_DATABASE_DSN", "postgres://localhost/prices")
	t.Setenv("PRICEWATCHER_ALERTING_EMAIL_SENDER", "alerts@example.com")
	t.Setenv("PRICEWATCHER_ALERTING_EMAIL_PASSWORD", "secret")
	t.Setenv("PRICEWATCHER_ALERTING_EMAIL_RECIPIENTS", "ops@example.com,dev@example.com")
	t.Setenv("PRICEWATCHER_ALERTING_TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("PRICEWATCHER_ALERTING_TELEGRAM_CHAT_ID", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.AlphaVantage.APIKey != "envkey" {
		t.Fatalf("api key not picked up from environment, got %q", cfg.AlphaVantage.APIKey)
	}
	if cfg.Database.DSN != "postgres://localhost/prices" {
		t.Fatalf("dsn not picked up from environment, got %q", cfg.Database.DSN)
	}
	if cfg.Alerting.Email.Sender != "alerts@example.com" || cfg.Alerting.Email.Password != "secret" {
		t.Fatal("email credentials not picked up from environment")
	}
	if len(cfg.Alerting.Email.Recipients) != 2 || cfg.Alerting.Email.Recipients[1] != "dev@example.com" {
		t.Fatalf("recipient list not split from environment, got %v", cfg.Alerting.Email.Recipients)
	}
	if cfg.Alerting.Telegram.BotToken != "tok" || cfg.Alerting.Telegram.ChatID != "42" {
		t.Fatal("telegram credentials not picked up from environment")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
fetch:
  symbols: ["AAPL", "MSFT"]
  cache_ttl: 30s
alerting:
  threshold_pct: 1.5
  channels: ["telegram"]
  telegram:
    enabled: true
    bot_token: "tok"
    chat_id: "42"
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Fetch.Symbols) != 2 || cfg.Fetch.Symbols[1] != "MSFT" {
		t.Fatalf("unexpected symbols %v", cfg.Fetch.Symbols)
	}
	if cfg.Fetch.CacheTTL != 30*time.Second {
		t.Fatalf("file value should override default, got %s", cfg.Fetch.CacheTTL)
	}
	if cfg.Alerting.ThresholdPct != 1.5 {
		t.Fatalf("want threshold 1.5, got %v", cfg.Alerting.ThresholdPct)
	}
	if !cfg.Alerting.Telegram.Enabled || cfg.Alerting.Telegram.BotToken != "tok" {
		t.Fatal("telegram channel settings should carry over")
	}
	// History cap untouched by the file keeps its default.
	if cfg.Fetch.HistoryCap != 1000 {
		t.Fatalf("want default history_cap, got %d", cfg.Fetch.HistoryCap)
	}
}

func TestValidateRejectsIncompleteChannels(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Fetch.Symbols = nil }},
		{"zero history cap", func(c *Config) { c.Fetch.HistoryCap = 0 }},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"negative threshold", func(c *Config) { c.Alerting.ThresholdPct = -1 }},
		{"email without credentials", func(c *Config) { c.Alerting.Email.Enabled = true }},
		{"telegram without token", func(c *Config) { c.Alerting.Telegram.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s should fail validation", tc.name)
			}
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 100000}}
	if got := cfg.ResolveMaxPoints(0); got != 100000 {
		t.Fatalf("want config default, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(500); got != 500 {
		t.Fatalf("want override 500, got %d", got)
	}
}
