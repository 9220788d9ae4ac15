// Package analytics derives rolling statistics from discrepancy history.
package analytics

import (
	"math"
)

// Trend classifies the direction of recent discrepancies.
type Trend string

const (
	TrendIncreasing  Trend = "increasing"
	TrendDecreasing  Trend = "decreasing"
	TrendFluctuating Trend = "fluctuating"
)

// Snapshot holds the rolling statistics for one symbol. All fields are nil
// (or empty for Trend) until at least two observations exist.
type Snapshot struct {
	MovingAverage *float64
	Volatility    *float64
	Trend         Trend
}

// Summary aggregates all discrepancies recorded for one symbol.
type Summary struct {
	TotalComparisons int
	AvgDifference    *float64
	MaxDifference    *float64
	MinDifference    *float64
	CurrentTrend     Trend
}

// Engine computes analytics over discrepancy-percent sequences.
type Engine struct {
	window int
}

// NewEngine constructs an analytics engine with the given trailing window.
func NewEngine(window int) *Engine {
	if window <= 0 {
		window = 5
	}
	return &Engine{window: window}
}

// Snapshot computes the moving average, volatility and trend over the
// discrepancy values of one symbol, oldest first. The moving average spans
// the trailing window (inclusive of the most recent value); volatility is
// the sample standard deviation over all values to date.
func (e *Engine) Snapshot(diffs []float64) Snapshot {
	if len(diffs) < 2 {
		return Snapshot{}
	}

	tail := trailing(diffs, e.window)
	ma := mean(tail)
	vol := sampleStdDev(diffs)

	return Snapshot{
		MovingAverage: &ma,
		Volatility:    &vol,
		Trend:         classifyTrend(tail),
	}
}

// Summary aggregates the full discrepancy history of one symbol. It is
// recomputed on demand, never cached.
func (e *Engine) Summary(diffs []float64) Summary {
	if len(diffs) == 0 {
		return Summary{}
	}

	avg := mean(diffs)
	max := diffs[0]
	min := diffs[0]
	for _, d := range diffs[1:] {
		if d > max {
			max = d
		}
		if d < min {
			min = d
		}
	}

	return Summary{
		TotalComparisons: len(diffs),
		AvgDifference:    &avg,
		MaxDifference:    &max,
		MinDifference:    &min,
		CurrentTrend:     e.Snapshot(diffs).Trend,
	}
}

func trailing(values []float64, window int) []float64 {
	if len(values) <= window {
		return values
	}
	return values[len(values)-window:]
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses the N-1 denominator.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// classifyTrend reports increasing for monotonically non-decreasing
// sequences and decreasing for monotonically non-increasing ones. An
// all-flat sequence therefore classifies as increasing: the non-decreasing
// test wins the tie.
func classifyTrend(values []float64) Trend {
	nonDecreasing := true
	nonIncreasing := true
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			nonDecreasing = false
		}
		if values[i] > values[i-1] {
			nonIncreasing = false
		}
	}
	if nonDecreasing {
		return TrendIncreasing
	}
	if nonIncreasing {
		return TrendDecreasing
	}
	return TrendFluctuating
}
