package contracts

import (
	"context"
	"time"
)

// TaskStore is the durable record of tasks and batches. All status and
// result writes for one task happen in one transaction inside the
// implementation; the orchestrator is the only writer of task status.
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTaskByID(ctx context.Context, id string) (*Task, error)
	ListPendingTasks(ctx context.Context, limit int) ([]*Task, error)

	// ClaimPendingTasks atomically moves up to limit PENDING tasks to
	// RUNNING in FIFO order and returns them. Tasks claimed by one
	// worker are invisible to concurrent claims.
	ClaimPendingTasks(ctx context.Context, limit int) ([]*Task, error)

	// TransitionTask applies from -> to conditionally. Returns a
	// TransitionError when the task is no longer in the from status.
	TransitionTask(ctx context.Context, id string, from, to TaskStatus, errorMessage string) error

	UpdateProgress(ctx context.Context, id string, progress int) error

	// CompleteTask persists the result and the COMPLETED status in one
	// transaction; either both survive or neither does.
	CompleteTask(ctx context.Context, taskID string, result *BacktestResult) error

	// FailTask records the error message and the FAILED status in one
	// transaction.
	FailTask(ctx context.Context, taskID string, errorMessage string) error

	CreateBatch(ctx context.Context, batch *Batch) error
	GetBatchByID(ctx context.Context, id string) (*Batch, error)
	GetTasksByBatch(ctx context.Context, batchID string) ([]*Task, error)
}

// ResultStore reads persisted backtest results.
type ResultStore interface {
	GetResultByTaskID(ctx context.Context, taskID string) (*BacktestResult, error)
}

// FactorStore owns factor combinations and per-date factor values.
type FactorStore interface {
	SaveCombination(ctx context.Context, c *FactorCombination) error
	GetCombinationByID(ctx context.Context, id string) (*FactorCombination, error)
	ListCombinations(ctx context.Context) ([]*FactorCombination, error)

	// GetFactorValues returns the requested factors for one stock as
	// they were knowable on date. Unavailable names are omitted.
	GetFactorValues(ctx context.Context, stockCode string, date time.Time, names []string) (map[string]float64, error)
}

// SnapshotProvider supplies price bars and the trading calendar.
// GetPriceOnDate returns a DataNotFoundError when the date has no bar.
// GetTradingCalendar may be unavailable; callers fall back to business
// days.
type SnapshotProvider interface {
	GetPriceOnDate(ctx context.Context, stockCode string, date time.Time) (*PriceBar, error)
	GetTradingCalendar(ctx context.Context, exchange string, start, end time.Time) ([]time.Time, error)
}

// SnapshotCache memoizes validated snapshots. Keys are immutable
// historical (stock, date, mode) tuples, so staleness within one run is
// impossible and idempotent overwrites are safe.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*DataSnapshot, bool, error)
	Set(ctx context.Context, key string, snapshot *DataSnapshot) error
}
