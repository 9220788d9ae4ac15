package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSampleSQL = `INSERT INTO comparison_samples (
        observed_at,
        symbol,
        alpha_price,
        yahoo_price,
        discrepancy_pct,
        moving_avg,
        volatility
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	listSamplesBetweenSQL = `SELECT
        observed_at,
        symbol,
        alpha_price,
        yahoo_price,
        discrepancy_pct,
        moving_avg,
        volatility,
        created_at
    FROM comparison_samples
    WHERE observed_at >= $1
      AND observed_at < $2
      AND ($3 = '' OR symbol = $3)
    ORDER BY observed_at;`

	listRecentSamplesSQL = `SELECT
        observed_at,
        symbol,
        alpha_price,
        yahoo_price,
        discrepancy_pct,
        moving_avg,
        volatility,
        created_at
    FROM comparison_samples
    WHERE ($2 = '' OR symbol = $2)
    ORDER BY observed_at DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM comparison_samples;`

	insertAlertSQL = `INSERT INTO alerts (
        observed_at,
        symbol,
        discrepancy_pct,
        threshold_pct,
        alert_type,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, observed_at, symbol, discrepancy_pct, threshold_pct, alert_type, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        observed_at,
        symbol,
        discrepancy_pct,
        threshold_pct,
        alert_type,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for comparison sample persistence.
type SampleStore interface {
	InsertSample(ctx context.Context, sample ComparisonSample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time, symbol string) ([]ComparisonSample, error)
	ListRecentSamples(ctx context.Context, limit int, symbol string) ([]ComparisonSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRow) (AlertRow, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRow, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to comparison samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSample persists one comparison observation.
func (s *Store) InsertSample(ctx context.Context, sample ComparisonSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var movingAvg interface{}
	if sample.MovingAvg != nil {
		movingAvg = *sample.MovingAvg
	}
	var volatility interface{}
	if sample.Volatility != nil {
		volatility = *sample.Volatility
	}

	_, execErr := pool.Exec(ctx, insertSampleSQL,
		sample.ObservedAt,
		sample.Symbol,
		sample.AlphaPrice.String(),
		sample.YahooPrice.String(),
		sample.DiscrepancyPct.String(),
		movingAvg,
		volatility,
	)
	if execErr != nil {
		return fmt.Errorf("insert comparison sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window, optionally
// filtered by symbol (empty symbol matches all).
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time, symbol string) ([]ComparisonSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]ComparisonSample, 0)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending time.
func (s *Store) ListRecentSamples(ctx context.Context, limit int, symbol string) ([]ComparisonSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit, symbol)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]ComparisonSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRow) (AlertRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRow{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.ObservedAt,
		alert.Symbol,
		alert.DiscrepancyPct.String(),
		alert.ThresholdPct.String(),
		alert.AlertType,
		alert.Channels,
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRow{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRow, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanSample(row pgx.Row) (ComparisonSample, error) {
	var (
		observedAt     time.Time
		symbol         string
		alphaStr       string
		yahooStr       string
		discrepancyStr string
		movingAvg      sql.NullFloat64
		volatility     sql.NullFloat64
		createdAt      time.Time
	)

	if err := row.Scan(
		&observedAt,
		&symbol,
		&alphaStr,
		&yahooStr,
		&discrepancyStr,
		&movingAvg,
		&volatility,
		&createdAt,
	); err != nil {
		return ComparisonSample{}, err
	}

	alpha, err := decimal.NewFromString(alphaStr)
	if err != nil {
		return ComparisonSample{}, fmt.Errorf("parse alpha price: %w", err)
	}
	yahoo, err := decimal.NewFromString(yahooStr)
	if err != nil {
		return ComparisonSample{}, fmt.Errorf("parse yahoo price: %w", err)
	}
	discrepancy, err := decimal.NewFromString(discrepancyStr)
	if err != nil {
		return ComparisonSample{}, fmt.Errorf("parse discrepancy pct: %w", err)
	}

	sample := ComparisonSample{
		ObservedAt:     observedAt,
		Symbol:         symbol,
		AlphaPrice:     alpha,
		YahooPrice:     yahoo,
		DiscrepancyPct: discrepancy,
		CreatedAt:      createdAt,
	}
	if movingAvg.Valid {
		value := movingAvg.Float64
		sample.MovingAvg = &value
	}
	if volatility.Valid {
		value := volatility.Float64
		sample.Volatility = &value
	}

	return sample, nil
}

func scanAlert(row pgx.Row) (AlertRow, error) {
	var rec AlertRow
	var discrepancyStr, thresholdStr string

	if err := row.Scan(
		&rec.ID,
		&rec.ObservedAt,
		&rec.Symbol,
		&discrepancyStr,
		&thresholdStr,
		&rec.AlertType,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRow{}, err
	}

	var convErr error
	rec.DiscrepancyPct, convErr = decimal.NewFromString(discrepancyStr)
	if convErr != nil {
		return AlertRow{}, fmt.Errorf("parse discrepancy pct: %w", convErr)
	}
	rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return AlertRow{}, fmt.Errorf("parse threshold pct: %w", convErr)
	}

	return rec, nil
}
