package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/alerting"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/analytics"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/config"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/fetcher"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/reconcile"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/scheduler"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/service"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/storage"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/validate"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSources() (fetcher.PriceSource, fetcher.PriceSource, error) {
	alpha, err := fetcher.NewAlphaVantage(fetcher.AlphaVantageOptions{
		BaseURL: a.Config.AlphaVantage.BaseURL,
		APIKey:  a.Config.AlphaVantage.APIKey,
		Timeout: a.Config.AlphaVantage.RequestTimeout,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	yahoo := fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:   a.Config.Yahoo.BaseURL,
		Timeout:   a.Config.Yahoo.RequestTimeout,
		UserAgent: a.Config.Yahoo.UserAgent,
	}, a.Logger)

	return alpha, yahoo, nil
}

func (a *App) newReconciler(sourceA, sourceB fetcher.PriceSource) *reconcile.Reconciler {
	validator := validate.NewValidator(a.Logger)
	cross := validate.NewCrossValidator(validate.CrossValidatorOptions{
		LargeSpreadThreshold:     a.Config.Fetch.LargeSpreadThreshold,
		SourceDeviationThreshold: a.Config.Fetch.SourceDeviationThreshold,
	}, a.Logger)
	engine := analytics.NewEngine(a.Config.Fetch.MovingAverageWindow)

	return reconcile.New(sourceA, sourceB, validator, cross, engine, reconcile.Options{
		CacheTTL:           a.Config.Fetch.CacheTTL,
		HistoryCap:         a.Config.Fetch.HistoryCap,
		CrossHistoryWindow: a.Config.Fetch.CrossHistoryWindow,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	var channels []alerting.Notifier
	for _, name := range a.Config.Alerting.Channels {
		switch name {
		case "email":
			if a.Config.Alerting.Email.Enabled {
				cfg := a.Config.Alerting.Email
				channels = append(channels, alerting.NewEmailNotifier(alerting.EmailOptions{
					SMTPHost:   cfg.SMTPHost,
					SMTPPort:   cfg.SMTPPort,
					Sender:     cfg.Sender,
					Password:   cfg.Password,
					Recipients: cfg.Recipients,
				}, a.Logger))
			}
		case "telegram":
			if a.Config.Alerting.Telegram.Enabled {
				cfg := a.Config.Alerting.Telegram
				channels = append(channels, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
			}
		}
	}
	if len(channels) == 0 {
		return nil
	}
	return alerting.NewMultiNotifier(a.Logger, channels...)
}

func (a *App) newGate() *alerting.Gate {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return nil
	}
	return alerting.NewGate(notifier, alerting.GateOptions{
		ThresholdPct: a.Config.Alerting.ThresholdPct,
		Cooldown:     a.Config.Alerting.Cooldown,
		MaxPerHour:   a.Config.Alerting.MaxPerHour,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; audit persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	sourceA, sourceB, err := a.newSources()
	if err != nil {
		return err
	}
	reconciler := a.newReconciler(sourceA, sourceB)
	gate := a.newGate()
	if a.Config.Alerting.Enabled && gate == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured; alerts disabled")
	}

	var sampleStore storage.SampleStore
	var alertStore storage.AlertStore
	if store != nil {
		sampleStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, reconciler, gate, sampleStore, alertStore, a.Logger)

	a.Logger.Info().Strs("symbols", a.Config.Fetch.Symbols).Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	Symbol    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Symbol string
	Stats  bool
}

// SimulateOptions configure the simulate-alert command.
type SimulateOptions struct {
	Symbol     string
	AlphaPrice float64
	YahooPrice float64
	Cycles     int
}
