package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/chronos/internal/contracts"
)

// ResultRepository implements contracts.ResultStore on PostgreSQL.
// Results are written only by TaskRepository.CompleteTask; this
// repository is read-only.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new result repository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// GetResultByTaskID retrieves the persisted result of a completed task.
func (r *ResultRepository) GetResultByTaskID(ctx context.Context, taskID string) (*contracts.BacktestResult, error) {
	query := `
		SELECT id, task_id, stock_code, start_date, end_date,
			combination, report, nav_series, trades,
			execution_time_ms, data_point_count, created_at
		FROM backtest_results
		WHERE task_id = $1
	`

	var result contracts.BacktestResult
	var combination, report, navSeries, trades []byte
	var executionMs int64

	err := r.pool.QueryRow(ctx, query, taskID).Scan(
		&result.ID, &result.TaskID, &result.StockCode, &result.StartDate, &result.EndDate,
		&combination, &report, &navSeries, &trades,
		&executionMs, &result.DataPointCount, &result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no result for task %s", taskID)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(combination, &result.Combination); err != nil {
		return nil, fmt.Errorf("failed to decode combination: %w", err)
	}
	if err := json.Unmarshal(report, &result.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	if err := json.Unmarshal(navSeries, &result.NavSeries); err != nil {
		return nil, fmt.Errorf("failed to decode nav series: %w", err)
	}
	if err := json.Unmarshal(trades, &result.Trades); err != nil {
		return nil, fmt.Errorf("failed to decode trades: %w", err)
	}
	result.ExecutionTime = time.Duration(executionMs) * time.Millisecond

	return &result, nil
}
