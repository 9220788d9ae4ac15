package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubNotifier struct {
	err   error
	calls int
	last  Notification
}

func (s *stubNotifier) Notify(ctx context.Context, note Notification) error {
	s.calls++
	s.last = note
	if s.err != nil {
		return s.err
	}
	return nil
}

func newTestGate(notifier Notifier, opts GateOptions) (*Gate, func(time.Time)) {
	g := NewGate(notifier, opts, zerolog.Nop())
	current := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return current }
	return g, func(ts time.Time) { current = ts }
}

func note(symbol string, pct float64) Notification {
	return Notification{
		Symbol:         symbol,
		PriceA:         decimal.NewFromInt(100),
		PriceB:         decimal.NewFromInt(101),
		DiscrepancyPct: decimal.NewFromFloat(pct),
	}
}

func TestGateSendsAboveThreshold(t *testing.T) {
	sink := &stubNotifier{}
	g, _ := newTestGate(sink, GateOptions{ThresholdPct: 0.5, Cooldown: 5 * time.Minute})

	outcome, err := g.Evaluate(context.Background(), note("AAPL", 0.80))
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if outcome.Status != StatusSent {
		t.Fatalf("want sent, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if sink.calls != 1 {
		t.Fatalf("notifier should be called once, got %d", sink.calls)
	}
	if sink.last.ThresholdPct.StringFixed(1) != "0.5" {
		t.Fatal("dispatched notification must carry the configured threshold")
	}
	if len(g.History()) != 1 {
		t.Fatal("sent alert must be recorded")
	}
}

func TestGateSuppressesAtOrBelowThreshold(t *testing.T) {
	sink := &stubNotifier{}
	g, _ := newTestGate(sink, GateOptions{ThresholdPct: 0.5})

	for _, pct := range []float64{0.30, 0.50} {
		outcome, err := g.Evaluate(context.Background(), note("AAPL", pct))
		if err != nil {
			t.Fatalf("evaluate(%v) failed: %v", pct, err)
		}
		if outcome.Status != StatusSuppressed || outcome.Reason != ReasonBelowThreshold {
			t.Fatalf("discrepancy %v should suppress below_threshold, got %+v", pct, outcome)
		}
	}
	if sink.calls != 0 {
		t.Fatal("suppressed alerts must not reach the notifier")
	}
	if len(g.History()) != 0 {
		t.Fatal("suppressed alerts must not be recorded")
	}
}

func TestGateCooldownCheckedBeforeThreshold(t *testing.T) {
	sink := &stubNotifier{}
	g, setNow := newTestGate(sink, GateOptions{ThresholdPct: 0.5, Cooldown: 5 * time.Minute})
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	if outcome, _ := g.Evaluate(context.Background(), note("AAPL", 0.80)); outcome.Status != StatusSent {
		t.Fatalf("first alert should send, got %+v", outcome)
	}

	// Inside the cooldown even a sub-threshold value reports cooldown,
	// because the cooldown check runs first.
	setNow(base.Add(2 * time.Minute))
	outcome, err := g.Evaluate(context.Background(), note("AAPL", 0.10))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusSuppressed || outcome.Reason != ReasonCooldown {
		t.Fatalf("want cooldown suppression, got %+v", outcome)
	}

	// Cooldown applies per symbol.
	if outcome, _ := g.Evaluate(context.Background(), note("MSFT", 0.80)); outcome.Status != StatusSent {
		t.Fatalf("other symbol should be unaffected by cooldown, got %+v", outcome)
	}

	// Past the cooldown the symbol can alert again.
	setNow(base.Add(5 * time.Minute))
	if outcome, _ := g.Evaluate(context.Background(), note("AAPL", 0.80)); outcome.Status != StatusSent {
		t.Fatalf("alert past cooldown should send, got %+v", outcome)
	}
}

func TestGateHourlyRateLimit(t *testing.T) {
	sink := &stubNotifier{}
	g, setNow := newTestGate(sink, GateOptions{
		ThresholdPct: 0.5,
		Cooldown:     time.Minute,
		MaxPerHour:   5,
	})
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		setNow(base.Add(time.Duration(i) * 2 * time.Minute))
		outcome, err := g.Evaluate(context.Background(), note("AAPL", 0.80))
		if err != nil {
			t.Fatalf("alert %d failed: %v", i, err)
		}
		if outcome.Status != StatusSent {
			t.Fatalf("alert %d should send, got %+v", i, outcome)
		}
	}

	setNow(base.Add(12 * time.Minute))
	outcome, err := g.Evaluate(context.Background(), note("AAPL", 0.80))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusSuppressed || outcome.Reason != ReasonRateLimit {
		t.Fatalf("sixth alert within the hour should rate-limit, got %+v", outcome)
	}

	// The budget only counts the trailing hour.
	setNow(base.Add(62 * time.Minute))
	if outcome, _ := g.Evaluate(context.Background(), note("AAPL", 0.80)); outcome.Status != StatusSent {
		t.Fatalf("alert after the hour window should send, got %+v", outcome)
	}
}

func TestGateFailedDispatchConsumesNoBudget(t *testing.T) {
	sink := &stubNotifier{err: errors.New("smtp down")}
	g, setNow := newTestGate(sink, GateOptions{ThresholdPct: 0.5, Cooldown: 5 * time.Minute})
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	outcome, err := g.Evaluate(context.Background(), note("AAPL", 0.80))
	if err == nil {
		t.Fatal("dispatch failure must surface an error")
	}
	if outcome.Status != StatusFailed {
		t.Fatalf("want dispatch_failed, got %+v", outcome)
	}
	if len(g.History()) != 0 {
		t.Fatal("failed dispatch must not be recorded")
	}

	// Immediate retry with a working channel: no cooldown was started.
	sink.err = nil
	setNow(base.Add(time.Second))
	if outcome, _ := g.Evaluate(context.Background(), note("AAPL", 0.80)); outcome.Status != StatusSent {
		t.Fatalf("retry after failure should send, got %+v", outcome)
	}
}

type blockingNotifier struct {
	symbol  string
	started chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Notify(ctx context.Context, note Notification) error {
	if note.Symbol == b.symbol {
		close(b.started)
		<-b.release
	}
	return nil
}

func TestGateDispatchDoesNotBlockOtherEvaluations(t *testing.T) {
	sink := &blockingNotifier{
		symbol:  "AAPL",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	g, _ := newTestGate(sink, GateOptions{ThresholdPct: 0.5, Cooldown: 5 * time.Minute})

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := g.Evaluate(context.Background(), note("AAPL", 0.80))
		done <- outcome
	}()
	<-sink.started

	// While the AAPL dispatch is stalled on the wire, ledger reads and
	// other symbols must not be blocked.
	if len(g.History()) != 0 {
		t.Fatal("in-flight dispatch must not be recorded yet")
	}
	if stats := g.Stats(); stats.TotalAlerts != 0 {
		t.Fatal("stats must be readable during dispatch")
	}
	if outcome, _ := g.Evaluate(context.Background(), note("MSFT", 0.80)); outcome.Status != StatusSent {
		t.Fatalf("other symbol should send during dispatch, got %+v", outcome)
	}

	// A repeat for the same symbol must not double-send meanwhile.
	if outcome, _ := g.Evaluate(context.Background(), note("AAPL", 0.90)); outcome.Status != StatusSuppressed {
		t.Fatalf("same symbol should be suppressed during dispatch, got %+v", outcome)
	}

	close(sink.release)
	if outcome := <-done; outcome.Status != StatusSent {
		t.Fatalf("stalled dispatch should complete as sent, got %+v", outcome)
	}
	if len(g.History()) != 2 {
		t.Fatalf("want AAPL and MSFT records, got %d", len(g.History()))
	}
}

func TestGateStats(t *testing.T) {
	sink := &stubNotifier{}
	g, setNow := newTestGate(sink, GateOptions{ThresholdPct: 0.5, Cooldown: time.Minute})
	base := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

	if g.Stats().TotalAlerts != 0 {
		t.Fatal("empty ledger must report zero stats")
	}

	for i, alert := range []struct {
		symbol string
		pct    float64
	}{
		{"AAPL", 1.0},
		{"MSFT", 2.0},
		{"AAPL", 3.0},
	} {
		setNow(base.Add(time.Duration(i) * 2 * time.Minute))
		if outcome, _ := g.Evaluate(context.Background(), note(alert.symbol, alert.pct)); outcome.Status != StatusSent {
			t.Fatalf("alert %d should send", i)
		}
	}

	stats := g.Stats()
	if stats.TotalAlerts != 3 {
		t.Fatalf("want 3 alerts, got %d", stats.TotalAlerts)
	}
	if stats.UniqueSymbols != 2 {
		t.Fatalf("want 2 symbols, got %d", stats.UniqueSymbols)
	}
	if stats.AvgDiscrepancy.Cmp(decimal.NewFromInt(2)) != 0 {
		t.Fatalf("want avg 2, got %s", stats.AvgDiscrepancy.String())
	}
	if stats.MaxDiscrepancy.Cmp(decimal.NewFromInt(3)) != 0 {
		t.Fatalf("want max 3, got %s", stats.MaxDiscrepancy.String())
	}
}
