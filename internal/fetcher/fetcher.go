package fetcher

import (
	"context"
)

// Source labels used across records and diagnostics.
const (
	SourceAlphaVantage = "alpha_vantage"
	SourceYahoo        = "yahoo_finance"
)

// PriceSource retrieves the current price of a symbol from one provider.
// Prices cross the boundary as raw float64 and are sanity-checked by the
// validator before anything downstream trusts them.
type PriceSource interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (float64, error)
}
