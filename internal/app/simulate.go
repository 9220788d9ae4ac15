package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/alerting"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/fetcher"
)

// SimulateAlert pushes fixed source prices through the full pipeline:
// validation, cross-validation, recording, and alert admission.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	gate := a.newGate()
	if gate == nil {
		return errors.New("no alert channel configured")
	}

	alpha := &staticSource{name: fetcher.SourceAlphaVantage, price: opts.AlphaPrice}
	yahoo := &staticSource{name: fetcher.SourceYahoo, price: opts.YahooPrice}
	reconciler := a.newReconciler(alpha, yahoo)

	cycles := opts.Cycles
	if cycles <= 0 {
		cycles = 1
	}

	for i := 0; i < cycles; i++ {
		record, err := reconciler.Compare(ctx, opts.Symbol)
		if err != nil {
			return err
		}

		outcome, err := gate.Evaluate(ctx, alerting.Notification{
			Timestamp:      record.Timestamp,
			Symbol:         record.Symbol,
			PriceA:         record.PriceA,
			PriceB:         record.PriceB,
			DiscrepancyPct: record.DiscrepancyPct,
		})
		if err != nil {
			return err
		}

		if outcome.Reason != "" {
			fmt.Fprintf(os.Stdout, "cycle %d: discrepancy %s%% -> %s (%s)\n", i+1, record.DiscrepancyPct.StringFixed(2), outcome.Status, outcome.Reason)
		} else {
			fmt.Fprintf(os.Stdout, "cycle %d: discrepancy %s%% -> %s\n", i+1, record.DiscrepancyPct.StringFixed(2), outcome.Status)
		}
	}

	return nil
}

type staticSource struct {
	name  string
	price float64
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(ctx context.Context, symbol string) (float64, error) {
	return s.price, nil
}

var _ fetcher.PriceSource = (*staticSource)(nil)
