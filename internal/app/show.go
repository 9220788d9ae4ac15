package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/analytics"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/storage"
)

// Show prints recent comparison samples, optionally with aggregates.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit, opts.Symbol)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tAlpha Vantage\tYahoo Finance\tDiscrepancy%\tMoving Avg\tVolatility")

	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sample.ObservedAt.UTC().Format(time.RFC3339),
			sample.Symbol,
			formatDecimal(sample.AlphaPrice, 2),
			formatDecimal(sample.YahooPrice, 2),
			formatDecimal(sample.DiscrepancyPct, 2),
			formatNullableFloat(sample.MovingAvg),
			formatNullableFloat(sample.Volatility),
		)
	}
	writer.Flush()

	if opts.Stats {
		a.printSampleStats(samples, opts.Symbol)
		if total, err := store.CountSamples(ctx); err == nil {
			fmt.Fprintf(os.Stdout, "  stored samples (all symbols): %d\n", total)
		} else {
			a.Logger.Error().Err(err).Msg("failed to count stored samples")
		}
		a.printAlertStats(ctx, store, opts.Limit)
	}

	return nil
}

// printSampleStats aggregates the displayed samples through the same
// analytics engine the reconciler runs, so trend classification matches
// what the service logged at sampling time.
func (a *App) printSampleStats(samples []storage.ComparisonSample, symbol string) {
	// ListRecentSamples returns newest first; analytics expect
	// chronological order.
	diffs := make([]float64, 0, len(samples))
	for i := len(samples) - 1; i >= 0; i-- {
		diffs = append(diffs, samples[i].DiscrepancyPct.InexactFloat64())
	}

	engine := analytics.NewEngine(a.Config.Fetch.MovingAverageWindow)
	summary := engine.Summary(diffs)

	label := symbol
	if label == "" {
		label = "all symbols"
	}

	fmt.Fprintf(os.Stdout, "\nStats (%s, last %d samples):\n", label, summary.TotalComparisons)
	fmt.Fprintf(os.Stdout, "  avg discrepancy: %s%%\n", formatNullableFloat(summary.AvgDifference))
	fmt.Fprintf(os.Stdout, "  max discrepancy: %s%%\n", formatNullableFloat(summary.MaxDifference))
	fmt.Fprintf(os.Stdout, "  min discrepancy: %s%%\n", formatNullableFloat(summary.MinDifference))
	if summary.CurrentTrend != "" {
		fmt.Fprintf(os.Stdout, "  trend: %s\n", summary.CurrentTrend)
	}
}

func (a *App) printAlertStats(ctx context.Context, store storage.AlertStore, limit int) {
	alerts, err := store.ListRecentAlerts(ctx, limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to load recent alerts")
		return
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "\nNo alerts recorded.")
		return
	}

	symbols := make(map[string]struct{})
	sum := decimal.Zero
	max := alerts[0].DiscrepancyPct
	for _, rec := range alerts {
		symbols[rec.Symbol] = struct{}{}
		sum = sum.Add(rec.DiscrepancyPct)
		if rec.DiscrepancyPct.Cmp(max) > 0 {
			max = rec.DiscrepancyPct
		}
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(alerts))))

	fmt.Fprintf(os.Stdout, "\nAlerts (last %d):\n", len(alerts))
	fmt.Fprintf(os.Stdout, "  total: %d across %d symbols\n", len(alerts), len(symbols))
	fmt.Fprintf(os.Stdout, "  avg discrepancy: %s%%\n", avg.StringFixed(2))
	fmt.Fprintf(os.Stdout, "  max discrepancy: %s%%\n", max.StringFixed(2))
}

func formatNullableFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *v), "0"), ".")
}
