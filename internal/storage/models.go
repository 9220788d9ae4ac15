package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComparisonSample is a persisted price comparison observation. Samples
// are audit data only: the engine never reads them back into its in-memory
// history.
type ComparisonSample struct {
	ObservedAt     time.Time
	Symbol         string
	AlphaPrice     decimal.Decimal
	YahooPrice     decimal.Decimal
	DiscrepancyPct decimal.Decimal
	MovingAvg      *float64
	Volatility     *float64
	CreatedAt      time.Time
}

// AlertRow captures a dispatched alert for auditing.
type AlertRow struct {
	ID             int64
	ObservedAt     time.Time
	Symbol         string
	DiscrepancyPct decimal.Decimal
	ThresholdPct   decimal.Decimal
	AlertType      string
	Channels       []string
	CreatedAt      time.Time
}
