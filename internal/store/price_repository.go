package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/chronos/internal/contracts"
)

// PriceRepository serves daily bars and the trading calendar from
// PostgreSQL. It is the local half of the snapshot provider; the
// remote client backfills what is missing here.
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetPriceOnDate retrieves the bar for exactly one stock and date.
// A missing row is a DataNotFoundError, not a generic failure, so
// callers can treat holidays and suspensions as skippable.
func (r *PriceRepository) GetPriceOnDate(ctx context.Context, stockCode string, date time.Time) (*contracts.PriceBar, error) {
	query := `
		SELECT open_price, high_price, low_price, close_price, volume, amount
		FROM daily_prices
		WHERE stock_code = $1 AND trade_date = $2
	`

	var bar contracts.PriceBar
	err := r.pool.QueryRow(ctx, query, stockCode, date).Scan(
		&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Amount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.DataNotFoundError{StockCode: stockCode, Date: date, Kind: "price"}
	}
	if err != nil {
		return nil, err
	}
	return &bar, nil
}

// GetTradingCalendar returns the exchange's trading days within the
// range, ascending. An empty result means the calendar is not loaded
// for this range; callers fall back to business days.
func (r *PriceRepository) GetTradingCalendar(ctx context.Context, exchange string, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT trade_date
		FROM trading_calendar
		WHERE exchange = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, exchange, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// SavePrice upserts one daily bar.
func (r *PriceRepository) SavePrice(ctx context.Context, stockCode string, date time.Time, bar *contracts.PriceBar) error {
	query := `
		INSERT INTO daily_prices (stock_code, trade_date, open_price, high_price, low_price, close_price, volume, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount
	`
	_, err := r.pool.Exec(ctx, query,
		stockCode, date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Amount,
	)
	if err != nil {
		return fmt.Errorf("failed to save price: %w", err)
	}
	return nil
}

// SavePrices upserts a batch of daily bars keyed by date.
func (r *PriceRepository) SavePrices(ctx context.Context, stockCode string, bars map[time.Time]*contracts.PriceBar) error {
	for date, bar := range bars {
		if err := r.SavePrice(ctx, stockCode, date, bar); err != nil {
			return err
		}
	}
	return nil
}
