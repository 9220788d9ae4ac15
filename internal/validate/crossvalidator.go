package validate

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrUntrustedPair marks a price pair rejected by cross-validation.
var ErrUntrustedPair = errors.New("price pair not trustworthy")

// PricePair carries one historical observation of both sources.
type PricePair struct {
	PriceA decimal.Decimal
	PriceB decimal.Decimal
}

// CrossValidatorOptions tune the cross-source checks.
type CrossValidatorOptions struct {
	// LargeSpreadThreshold is the relative spread above which a pair is
	// checked against recent history (0.20 = 20%).
	LargeSpreadThreshold float64
	// SourceDeviationThreshold is the per-source relative deviation from
	// its own recent average that marks a source suspicious (0.10 = 10%).
	SourceDeviationThreshold float64
}

// CrossValidator compares two accepted prices against each other and
// against recent history to decide whether the pair is trustworthy.
type CrossValidator struct {
	largeSpread     decimal.Decimal
	sourceDeviation decimal.Decimal
	logger          zerolog.Logger
}

// NewCrossValidator constructs a cross-source validator.
func NewCrossValidator(opts CrossValidatorOptions, logger zerolog.Logger) *CrossValidator {
	largeSpread := opts.LargeSpreadThreshold
	if largeSpread <= 0 {
		largeSpread = 0.20
	}
	sourceDeviation := opts.SourceDeviationThreshold
	if sourceDeviation <= 0 {
		sourceDeviation = 0.10
	}

	return &CrossValidator{
		largeSpread:     decimal.NewFromFloat(largeSpread),
		sourceDeviation: decimal.NewFromFloat(sourceDeviation),
		logger:          logger.With().Str("component", "cross_validator").Logger(),
	}
}

// Check accepts or rejects a price pair. Small spreads are always trusted;
// a large spread is rejected only when one or both sources deviate from
// their own recent averages, so the first-ever large spread for a symbol
// is accepted (there is no baseline to compare against).
func (c *CrossValidator) Check(priceA, priceB decimal.Decimal, symbol string, recent []PricePair) error {
	spread := priceA.Sub(priceB).Abs().Div(decimal.Min(priceA, priceB))
	if spread.Cmp(c.largeSpread) <= 0 {
		return nil
	}

	c.logger.Warn().
		Str("symbol", symbol).
		Str("price_a", priceA.StringFixed(2)).
		Str("price_b", priceB.StringFixed(2)).
		Str("spread", spread.StringFixed(4)).
		Msg("large price discrepancy detected")

	if len(recent) == 0 {
		return nil
	}

	var sumA, sumB decimal.Decimal
	for _, pair := range recent {
		sumA = sumA.Add(pair.PriceA)
		sumB = sumB.Add(pair.PriceB)
	}
	count := decimal.NewFromInt(int64(len(recent)))
	avgA := sumA.Div(count)
	avgB := sumB.Div(count)

	devA := priceA.Sub(avgA).Abs().Div(avgA)
	devB := priceB.Sub(avgB).Abs().Div(avgB)

	suspiciousA := devA.Cmp(c.sourceDeviation) > 0
	suspiciousB := devB.Cmp(c.sourceDeviation) > 0

	switch {
	case suspiciousA && suspiciousB:
		c.logger.Error().Str("symbol", symbol).Msg("both sources show suspicious prices")
		return fmt.Errorf("%w: both sources suspicious for %s", ErrUntrustedPair, symbol)
	case suspiciousA:
		c.logger.Warn().Str("symbol", symbol).Msg("alpha vantage price suspicious")
		return fmt.Errorf("%w: source A suspicious for %s", ErrUntrustedPair, symbol)
	case suspiciousB:
		c.logger.Warn().Str("symbol", symbol).Msg("yahoo finance price suspicious")
		return fmt.Errorf("%w: source B suspicious for %s", ErrUntrustedPair, symbol)
	}

	// Large spread but neither source deviates from its own trend: a
	// genuine, trustworthy discrepancy.
	return nil
}
