package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	AlphaVantage AlphaVantageConfig `mapstructure:"alpha_vantage"`
	Yahoo        YahooConfig        `mapstructure:"yahoo"`
	Fetch        FetchConfig        `mapstructure:"fetch"`
	Alerting     AlertingConfig     `mapstructure:"alerting"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the audit sink.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	// AlertRetention prunes audited alerts older than this age; zero
	// keeps them forever.
	AlertRetention time.Duration `mapstructure:"alert_retention"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// AlphaVantageConfig covers the Alpha Vantage quote endpoint.
type AlphaVantageConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// YahooConfig covers the Yahoo Finance chart endpoint.
type YahooConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// FetchConfig tunes the reconciliation engine.
type FetchConfig struct {
	Symbols                  []string      `mapstructure:"symbols"`
	CacheTTL                 time.Duration `mapstructure:"cache_ttl"`
	HistoryCap               int           `mapstructure:"history_cap"`
	MovingAverageWindow      int           `mapstructure:"moving_average_window"`
	CrossHistoryWindow       int           `mapstructure:"cross_history_window"`
	LargeSpreadThreshold     float64       `mapstructure:"large_spread_threshold"`
	SourceDeviationThreshold float64       `mapstructure:"source_deviation_threshold"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	MaxPerHour   int            `mapstructure:"max_per_hour"`
	Channels     []string       `mapstructure:"channels"`
	Email        EmailConfig    `mapstructure:"email"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig describes the SMTP alert channel.
type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Sender     string   `mapstructure:"sender"`
	Password   string   `mapstructure:"password"`
	Recipients []string `mapstructure:"recipients"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	// Credentials may live in a dotenv file next to the binary.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRICEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// setDefaults registers every key, including empty-string secrets: viper
// only resolves environment variables for keys it already knows about when
// the config is unmarshalled.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70726377))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alpha_vantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("alpha_vantage.api_key", "")
	v.SetDefault("alpha_vantage.request_timeout", "10s")

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.request_timeout", "10s")
	v.SetDefault("yahoo.user_agent", "pricewatcher/1.0")

	v.SetDefault("fetch.symbols", []string{"AAPL"})
	v.SetDefault("fetch.cache_ttl", "12s")
	v.SetDefault("fetch.history_cap", 1000)
	v.SetDefault("fetch.moving_average_window", 5)
	v.SetDefault("fetch.cross_history_window", 5)
	v.SetDefault("fetch.large_spread_threshold", 0.20)
	v.SetDefault("fetch.source_deviation_threshold", 0.10)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 0.5)
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.max_per_hour", 5)
	v.SetDefault("alerting.channels", []string{"email"})
	v.SetDefault("alerting.email.enabled", false)
	v.SetDefault("alerting.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("alerting.email.smtp_port", 587)
	v.SetDefault("alerting.email.sender", "")
	v.SetDefault("alerting.email.password", "")
	v.SetDefault("alerting.email.recipients", []string{})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.alert_retention", "0s")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// A failure here is fatal: the service must not start a single cycle
// with an incomplete configuration.
func (c *Config) Validate() error {
	if len(c.Fetch.Symbols) == 0 {
		return fmt.Errorf("fetch.symbols must list at least one symbol")
	}
	if c.Fetch.CacheTTL < 0 {
		return fmt.Errorf("fetch.cache_ttl cannot be negative")
	}
	if c.Fetch.HistoryCap <= 0 {
		return fmt.Errorf("fetch.history_cap must be greater than zero")
	}
	if c.Fetch.MovingAverageWindow <= 0 {
		return fmt.Errorf("fetch.moving_average_window must be greater than zero")
	}
	if c.Fetch.CrossHistoryWindow <= 0 {
		return fmt.Errorf("fetch.cross_history_window must be greater than zero")
	}
	if c.Fetch.LargeSpreadThreshold <= 0 {
		return fmt.Errorf("fetch.large_spread_threshold must be greater than zero")
	}
	if c.Fetch.SourceDeviationThreshold <= 0 {
		return fmt.Errorf("fetch.source_deviation_threshold must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Cooldown < 0 {
		return fmt.Errorf("alerting.cooldown cannot be negative")
	}
	if c.Alerting.MaxPerHour <= 0 {
		return fmt.Errorf("alerting.max_per_hour must be greater than zero")
	}
	if c.Alerting.Email.Enabled {
		if c.Alerting.Email.Sender == "" || c.Alerting.Email.Password == "" {
			return fmt.Errorf("alerting.email.sender and alerting.email.password are required")
		}
		if len(c.Alerting.Email.Recipients) == 0 {
			return fmt.Errorf("alerting.email.recipients must list at least one address")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Database.AlertRetention < 0 {
		return fmt.Errorf("database.alert_retention cannot be negative")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
