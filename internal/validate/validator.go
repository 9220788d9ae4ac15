package validate

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidPrice marks a raw price that failed sanity checks.
var ErrInvalidPrice = errors.New("invalid price")

// Validator sanity-checks a single raw price before it is trusted.
type Validator struct {
	logger zerolog.Logger
}

// NewValidator constructs a price validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger.With().Str("component", "price_validator").Logger()}
}

// Validate rejects zero, negative, and non-finite raw values and converts
// accepted ones to decimal. Rejections are diagnostic events, not fatal.
func (v *Validator) Validate(raw float64, source, symbol string) (decimal.Decimal, error) {
	var reason string
	switch {
	case math.IsNaN(raw):
		reason = "not a number"
	case math.IsInf(raw, 0):
		reason = "not finite"
	case raw == 0:
		reason = "zero"
	case raw < 0:
		reason = "negative"
	}

	if reason != "" {
		v.logger.Warn().
			Str("symbol", symbol).
			Str("source", source).
			Str("reason", reason).
			Float64("raw", raw).
			Msg("price rejected")
		return decimal.Decimal{}, fmt.Errorf("%w: %s price from %s for %s", ErrInvalidPrice, reason, source, symbol)
	}

	return decimal.NewFromFloat(raw), nil
}
