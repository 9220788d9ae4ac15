package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Suppression reasons reported by the gate.
const (
	ReasonCooldown       = "cooldown"
	ReasonBelowThreshold = "below_threshold"
	ReasonRateLimit      = "rate_limit"
)

// AlertTypeThreshold labels alerts admitted past the discrepancy threshold.
const AlertTypeThreshold = "threshold_exceeded"

// Status is the outcome class of an evaluate call.
type Status string

const (
	StatusSent       Status = "sent"
	StatusSuppressed Status = "suppressed"
	StatusFailed     Status = "dispatch_failed"
)

// Outcome reports what the gate decided for one discrepancy.
type Outcome struct {
	Status Status
	Reason string // set when suppressed
}

// Record captures one dispatched alert. Records are appended only when an
// alert was actually delivered, never for suppressed or failed attempts.
type Record struct {
	Timestamp      time.Time
	Symbol         string
	DiscrepancyPct decimal.Decimal
	Sent           bool
	AlertType      string
}

// Stats aggregates the dispatched-alert ledger.
type Stats struct {
	TotalAlerts    int
	UniqueSymbols  int
	AvgDiscrepancy decimal.Decimal
	MaxDiscrepancy decimal.Decimal
}

// GateOptions tune alert admission.
type GateOptions struct {
	ThresholdPct float64       // suppress at or below this absolute discrepancy
	Cooldown     time.Duration // minimum spacing between alerts per symbol
	MaxPerHour   int           // dispatched-alert cap per symbol per rolling hour
}

// Gate decides whether a discrepancy may produce an outbound alert. It
// exclusively owns the alert ledger and last-alert bookkeeping.
type Gate struct {
	notifier  Notifier
	threshold decimal.Decimal
	cooldown  time.Duration
	maxHour   int
	logger    zerolog.Logger

	mu        sync.Mutex
	records   []Record
	lastAlert map[string]time.Time
	inFlight  map[string]struct{}

	now func() time.Time
}

// NewGate constructs an alert gate in front of notifier.
func NewGate(notifier Notifier, opts GateOptions, logger zerolog.Logger) *Gate {
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	maxHour := opts.MaxPerHour
	if maxHour <= 0 {
		maxHour = 5
	}

	return &Gate{
		notifier:  notifier,
		threshold: decimal.NewFromFloat(opts.ThresholdPct),
		cooldown:  cooldown,
		maxHour:   maxHour,
		logger:    logger.With().Str("component", "alert_gate").Logger(),
		lastAlert: make(map[string]time.Time),
		inFlight:  make(map[string]struct{}),
		now:       time.Now,
	}
}

// Evaluate admits or suppresses an alert for the given comparison. The
// admission checks short-circuit in order: cooldown, threshold, hourly
// rate limit. The returned error is non-nil only for dispatch failures;
// a failed send consumes no cooldown or rate-limit budget.
//
// The mutex is not held across the dispatch itself, so ledger reads and
// other symbols' evaluations proceed while a slow channel delivers. An
// in-flight marker keeps a concurrent evaluation of the same symbol from
// double-sending in that window.
func (g *Gate) Evaluate(ctx context.Context, note Notification) (Outcome, error) {
	g.mu.Lock()

	now := g.now()

	if _, busy := g.inFlight[note.Symbol]; busy {
		g.mu.Unlock()
		g.logger.Info().Str("symbol", note.Symbol).Msg("alert skipped: dispatch already in flight")
		return Outcome{Status: StatusSuppressed, Reason: ReasonCooldown}, nil
	}

	if last, ok := g.lastAlert[note.Symbol]; ok && now.Sub(last) < g.cooldown {
		g.mu.Unlock()
		g.logger.Info().Str("symbol", note.Symbol).Msg("alert skipped: cooldown period active")
		return Outcome{Status: StatusSuppressed, Reason: ReasonCooldown}, nil
	}

	if note.DiscrepancyPct.Abs().Cmp(g.threshold) <= 0 {
		g.mu.Unlock()
		return Outcome{Status: StatusSuppressed, Reason: ReasonBelowThreshold}, nil
	}

	if g.countRecentLocked(note.Symbol, now.Add(-time.Hour)) >= g.maxHour {
		g.mu.Unlock()
		g.logger.Warn().Str("symbol", note.Symbol).Msg("too many alerts in the last hour")
		return Outcome{Status: StatusSuppressed, Reason: ReasonRateLimit}, nil
	}

	note.ThresholdPct = g.threshold
	if note.Timestamp.IsZero() {
		note.Timestamp = now
	}
	g.inFlight[note.Symbol] = struct{}{}
	g.mu.Unlock()

	err := g.notifier.Notify(ctx, note)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, note.Symbol)

	if err != nil {
		g.logger.Error().Err(err).Str("symbol", note.Symbol).Msg("failed to dispatch alert")
		return Outcome{Status: StatusFailed}, err
	}

	g.lastAlert[note.Symbol] = now
	g.records = append(g.records, Record{
		Timestamp:      now,
		Symbol:         note.Symbol,
		DiscrepancyPct: note.DiscrepancyPct,
		Sent:           true,
		AlertType:      AlertTypeThreshold,
	})

	g.logger.Info().
		Str("symbol", note.Symbol).
		Str("discrepancy_pct", note.DiscrepancyPct.StringFixed(2)).
		Msg("alert sent")
	return Outcome{Status: StatusSent}, nil
}

func (g *Gate) countRecentLocked(symbol string, since time.Time) int {
	count := 0
	for i := len(g.records) - 1; i >= 0; i-- {
		if !g.records[i].Timestamp.After(since) {
			break
		}
		if g.records[i].Symbol == symbol {
			count++
		}
	}
	return count
}

// Threshold reports the configured discrepancy threshold in percent.
func (g *Gate) Threshold() decimal.Decimal {
	return g.threshold
}

// History returns a copy of the dispatched-alert ledger, oldest first.
func (g *Gate) History() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// Stats aggregates the ledger on demand; zero values when no alerts exist.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.records) == 0 {
		return Stats{}
	}

	symbols := make(map[string]struct{})
	var sum decimal.Decimal
	max := g.records[0].DiscrepancyPct
	for _, rec := range g.records {
		symbols[rec.Symbol] = struct{}{}
		sum = sum.Add(rec.DiscrepancyPct)
		if rec.DiscrepancyPct.Cmp(max) > 0 {
			max = rec.DiscrepancyPct
		}
	}

	return Stats{
		TotalAlerts:    len(g.records),
		UniqueSymbols:  len(symbols),
		AvgDiscrepancy: sum.Div(decimal.NewFromInt(int64(len(g.records)))),
		MaxDiscrepancy: max,
	}
}
