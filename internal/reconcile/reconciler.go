// Package reconcile orchestrates fetching, validation and recording of
// price comparisons between the two sources.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/analytics"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/fetcher"
	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/validate"
)

var (
	// ErrNoComparison signals that a cycle produced no usable comparison.
	// Callers must treat this as a normal outcome, not a fault.
	ErrNoComparison = errors.New("no usable comparison")
	// ErrSourceUnavailable wraps ErrNoComparison when a source could not
	// deliver a price (failed call, empty payload, or cache miss).
	ErrSourceUnavailable = fmt.Errorf("%w: source unavailable", ErrNoComparison)
	// ErrPriceRejected wraps ErrNoComparison when a fetched price failed
	// sanity checks.
	ErrPriceRejected = fmt.Errorf("%w: price rejected", ErrNoComparison)
	// ErrPairRejected wraps ErrNoComparison when cross-validation rejected
	// an individually valid pair.
	ErrPairRejected = fmt.Errorf("%w: pair rejected", ErrNoComparison)
)

// Comparison is one reconciled observation of both sources. Records are
// never mutated after creation.
type Comparison struct {
	Timestamp      time.Time
	Symbol         string
	PriceA         decimal.Decimal // alpha vantage
	PriceB         decimal.Decimal // yahoo finance
	DiscrepancyPct decimal.Decimal // |A-B| / A * 100, always relative to A
	MovingAverage  *float64
	Volatility     *float64
}

// Options tune the reconciler.
type Options struct {
	// CacheTTL is the per-source window during which a live call is
	// replaced by the symbol's most recent recorded price.
	CacheTTL time.Duration
	// HistoryCap bounds the shared comparison history; the oldest record
	// is evicted first once the cap is exceeded.
	HistoryCap int
	// CrossHistoryWindow is the number of recent records consulted by
	// cross-validation.
	CrossHistoryWindow int
}

type fetchKey struct {
	symbol string
	source string
}

// Reconciler owns the comparison history and last-fetch bookkeeping. It is
// safe for concurrent use, though cycles are normally sequential per symbol.
type Reconciler struct {
	sourceA   fetcher.PriceSource
	sourceB   fetcher.PriceSource
	validator *validate.Validator
	cross     *validate.CrossValidator
	engine    *analytics.Engine
	opts      Options
	logger    zerolog.Logger

	mu        sync.Mutex
	history   []Comparison
	lastFetch map[fetchKey]time.Time

	now func() time.Time
}

// New constructs a reconciler over the two price sources.
func New(sourceA, sourceB fetcher.PriceSource, validator *validate.Validator, cross *validate.CrossValidator, engine *analytics.Engine, opts Options, logger zerolog.Logger) *Reconciler {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 12 * time.Second
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 1000
	}
	if opts.CrossHistoryWindow <= 0 {
		opts.CrossHistoryWindow = 5
	}

	return &Reconciler{
		sourceA:   sourceA,
		sourceB:   sourceB,
		validator: validator,
		cross:     cross,
		engine:    engine,
		opts:      opts,
		logger:    logger.With().Str("component", "reconciler").Logger(),
		lastFetch: make(map[fetchKey]time.Time),
		now:       time.Now,
	}
}

type reading struct {
	price decimal.Decimal
	live  bool
	err   error
}

// Compare runs one reconciliation cycle for symbol: fetch both sources,
// validate each reading, cross-validate the pair, and append a comparison
// record. A cycle run inside the cache window reuses the previous prices
// but still appends a record with a fresh timestamp, so rapid polling
// produces near-duplicate entries; callers polling faster than the cache
// TTL should expect that.
func (r *Reconciler) Compare(ctx context.Context, symbol string) (Comparison, error) {
	now := r.now()

	var wg sync.WaitGroup
	var readingA, readingB reading

	wg.Add(2)
	go func() {
		defer wg.Done()
		readingA = r.fetchSide(ctx, r.sourceA, symbol, now, func(c Comparison) decimal.Decimal { return c.PriceA })
	}()
	go func() {
		defer wg.Done()
		readingB = r.fetchSide(ctx, r.sourceB, symbol, now, func(c Comparison) decimal.Decimal { return c.PriceB })
	}()
	wg.Wait()

	if readingA.err != nil || readingB.err != nil {
		return Comparison{}, r.sideFailure(symbol, readingA.err, readingB.err)
	}

	priceA := readingA.price
	priceB := readingB.price

	r.mu.Lock()
	defer r.mu.Unlock()

	recent := r.recentPairsLocked(symbol)
	if err := r.cross.Check(priceA, priceB, symbol, recent); err != nil {
		r.logger.Warn().Err(err).Str("symbol", symbol).Msg("price validation failed")
		return Comparison{}, fmt.Errorf("%w: %v", ErrPairRejected, err)
	}

	discrepancy := priceA.Sub(priceB).Abs().Div(priceA).Mul(decimal.NewFromInt(100))

	// Analytics are computed over the history before the new record is
	// appended, so the stored columns lag by one observation.
	snapshot := r.engine.Snapshot(r.diffsLocked(symbol))

	record := Comparison{
		Timestamp:      now,
		Symbol:         symbol,
		PriceA:         priceA,
		PriceB:         priceB,
		DiscrepancyPct: discrepancy,
		MovingAverage:  snapshot.MovingAverage,
		Volatility:     snapshot.Volatility,
	}

	r.history = append(r.history, record)
	if len(r.history) > r.opts.HistoryCap {
		r.history = r.history[len(r.history)-r.opts.HistoryCap:]
	}

	if readingA.live {
		r.lastFetch[fetchKey{symbol, r.sourceA.Name()}] = now
	}
	if readingB.live {
		r.lastFetch[fetchKey{symbol, r.sourceB.Name()}] = now
	}

	r.logger.Info().
		Str("symbol", symbol).
		Str("price_a", priceA.StringFixed(2)).
		Str("price_b", priceB.StringFixed(2)).
		Str("discrepancy_pct", discrepancy.StringFixed(2)).
		Str("trend", string(snapshot.Trend)).
		Msg("comparison recorded")

	return record, nil
}

// fetchSide resolves one source, preferring the cached price when the
// source was live-fetched within the cache TTL.
func (r *Reconciler) fetchSide(ctx context.Context, src fetcher.PriceSource, symbol string, now time.Time, pick func(Comparison) decimal.Decimal) reading {
	if cached, ok := r.cachedPrice(src.Name(), symbol, now, pick); ok {
		r.logger.Info().Str("symbol", symbol).Str("source", src.Name()).Msg("using cached price")
		return cached
	}

	raw, err := src.Fetch(ctx, symbol)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", symbol).Str("source", src.Name()).Msg("fetch failed")
		return reading{err: fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.Name(), err)}
	}

	price, err := r.validator.Validate(raw, src.Name(), symbol)
	if err != nil {
		return reading{err: fmt.Errorf("%w: %v", ErrPriceRejected, err)}
	}

	return reading{price: price, live: true}
}

func (r *Reconciler) cachedPrice(source, symbol string, now time.Time, pick func(Comparison) decimal.Decimal) (reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.lastFetch[fetchKey{symbol, source}]
	if !ok || now.Sub(last) >= r.opts.CacheTTL {
		return reading{}, false
	}

	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Symbol == symbol {
			return reading{price: pick(r.history[i])}, true
		}
	}

	// Inside the window but nothing recorded to reuse.
	return reading{err: fmt.Errorf("%w: %s: no cached price for %s", ErrSourceUnavailable, source, symbol)}, true
}

func (r *Reconciler) sideFailure(symbol string, errA, errB error) error {
	err := errA
	if err == nil {
		err = errB
	} else if errB != nil {
		err = errors.Join(errA, errB)
	}
	r.logger.Warn().Err(err).Str("symbol", symbol).Msg("cycle yielded no comparison")
	return err
}

// recentPairsLocked returns up to CrossHistoryWindow most recent pairs for
// symbol, oldest first.
func (r *Reconciler) recentPairsLocked(symbol string) []validate.PricePair {
	var pairs []validate.PricePair
	for i := len(r.history) - 1; i >= 0 && len(pairs) < r.opts.CrossHistoryWindow; i-- {
		if r.history[i].Symbol == symbol {
			pairs = append(pairs, validate.PricePair{PriceA: r.history[i].PriceA, PriceB: r.history[i].PriceB})
		}
	}
	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return pairs
}

func (r *Reconciler) diffsLocked(symbol string) []float64 {
	var diffs []float64
	for _, rec := range r.history {
		if rec.Symbol == symbol {
			diffs = append(diffs, rec.DiscrepancyPct.InexactFloat64())
		}
	}
	return diffs
}

// History returns a copy of the full comparison history, oldest first.
func (r *Reconciler) History() []Comparison {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Comparison, len(r.history))
	copy(out, r.history)
	return out
}

// HistoryFor returns the records of one symbol, oldest first.
func (r *Reconciler) HistoryFor(symbol string) []Comparison {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Comparison
	for _, rec := range r.history {
		if rec.Symbol == symbol {
			out = append(out, rec)
		}
	}
	return out
}

// Summary recomputes the aggregate analytics for one symbol on demand.
func (r *Reconciler) Summary(symbol string) analytics.Summary {
	r.mu.Lock()
	diffs := r.diffsLocked(symbol)
	r.mu.Unlock()
	return r.engine.Summary(diffs)
}
