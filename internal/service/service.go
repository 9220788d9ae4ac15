package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/alerting"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/config"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/reconcile"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/scheduler"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/storage"
)

// Service orchestrates reconciliation, persistence, and alerting.
type Service struct {
	scheduler  *scheduler.Scheduler
	reconciler *reconcile.Reconciler
	gate       *alerting.Gate
	store      storage.SampleStore
	alertStore storage.AlertStore
	logger     zerolog.Logger

	symbols  []string
	channels []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64

	retention time.Duration
	lastSweep time.Time
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, reconciler *reconcile.Reconciler, gate *alerting.Gate, store storage.SampleStore, alertStore storage.AlertStore, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		reconciler: reconciler,
		gate:       gate,
		store:      store,
		alertStore: alertStore,
		logger:     logger.With().Str("component", "service").Logger(),
		symbols:    cfg.Fetch.Symbols,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled && gate != nil,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		retention:  cfg.Database.AlertRetention,
	}
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle runs one reconciliation cycle for every tracked symbol,
// sequentially. Symbols keep independent histories and alert budgets, so
// one symbol's failure never short-circuits the others.
func (s *Service) ProcessCycle(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	s.sweepAlerts(ctx)

	for _, symbol := range s.symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.processSymbol(ctx, symbol)
	}
	return nil
}

func (s *Service) processSymbol(ctx context.Context, symbol string) {
	record, err := s.reconciler.Compare(ctx, symbol)
	if err != nil {
		if errors.Is(err, reconcile.ErrNoComparison) {
			// Normal degraded outcome: nothing usable this cycle.
			s.logger.Info().Err(err).Str("symbol", symbol).Msg("no comparison this cycle")
		} else {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("reconciliation failed")
		}
		return
	}

	if s.store != nil {
		sample := storage.ComparisonSample{
			ObservedAt:     record.Timestamp,
			Symbol:         record.Symbol,
			AlphaPrice:     record.PriceA,
			YahooPrice:     record.PriceB,
			DiscrepancyPct: record.DiscrepancyPct,
			MovingAvg:      record.MovingAverage,
			Volatility:     record.Volatility,
		}
		if err := s.store.InsertSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist sample")
		}
	}

	if !s.alertsOn {
		return
	}

	outcome, err := s.gate.Evaluate(ctx, alerting.Notification{
		Timestamp:      record.Timestamp,
		Symbol:         record.Symbol,
		PriceA:         record.PriceA,
		PriceB:         record.PriceB,
		DiscrepancyPct: record.DiscrepancyPct,
	})
	switch outcome.Status {
	case alerting.StatusSent:
		if s.alertStore != nil {
			row := storage.AlertRow{
				ObservedAt:     record.Timestamp,
				Symbol:         record.Symbol,
				DiscrepancyPct: record.DiscrepancyPct,
				ThresholdPct:   s.gate.Threshold(),
				AlertType:      alerting.AlertTypeThreshold,
				Channels:       s.channels,
			}
			if _, err := s.alertStore.InsertAlert(ctx, row); err != nil {
				s.logger.Error().Err(err).Str("symbol", symbol).Msg("failed to persist alert record")
			}
		}
	case alerting.StatusSuppressed:
		s.logger.Debug().Str("symbol", symbol).Str("reason", outcome.Reason).Msg("alert suppressed")
	case alerting.StatusFailed:
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("alert dispatch failed")
	}
}

// sweepAlerts prunes audited alerts past the configured retention, at most
// once per hour. Only called from the scheduler goroutine.
func (s *Service) sweepAlerts(ctx context.Context) {
	if s.retention <= 0 || s.alertStore == nil {
		return
	}
	now := time.Now()
	if !s.lastSweep.IsZero() && now.Sub(s.lastSweep) < time.Hour {
		return
	}
	s.lastSweep = now

	cutoff := now.Add(-s.retention)
	if err := s.alertStore.DeleteAlertsBefore(ctx, cutoff); err != nil {
		s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to prune audited alerts")
		return
	}
	s.logger.Debug().Time("cutoff", cutoff).Msg("pruned audited alerts")
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
