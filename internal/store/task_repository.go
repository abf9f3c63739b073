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

// TaskRepository implements contracts.TaskStore on PostgreSQL. Status
// writes are conditional on the expected current status, so a row can
// never skip a lifecycle step even under concurrent workers.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, batch_id, name, stock_code, start_date, end_date, initial_capital,
	combination_id, status, progress, error_message, result_id, created_at, started_at, completed_at`

func scanTask(row pgx.Row) (*contracts.Task, error) {
	var t contracts.Task
	var batchID, errorMessage, resultID *string
	err := row.Scan(
		&t.ID, &batchID, &t.Name, &t.StockCode, &t.StartDate, &t.EndDate, &t.InitialCapital,
		&t.CombinationID, &t.Status, &t.Progress, &errorMessage, &resultID,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if batchID != nil {
		t.BatchID = *batchID
	}
	if errorMessage != nil {
		t.ErrorMessage = *errorMessage
	}
	if resultID != nil {
		t.ResultID = *resultID
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateTask inserts a new task row.
func (r *TaskRepository) CreateTask(ctx context.Context, task *contracts.Task) error {
	query := `
		INSERT INTO tasks (id, batch_id, name, stock_code, start_date, end_date,
			initial_capital, combination_id, status, progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		task.ID, nullable(task.BatchID), task.Name, task.StockCode,
		task.StartDate, task.EndDate, task.InitialCapital, task.CombinationID,
		task.Status, task.Progress, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTaskByID retrieves one task.
func (r *TaskRepository) GetTaskByID(ctx context.Context, id string) (*contracts.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return task, err
}

// ListPendingTasks returns up to limit pending tasks in FIFO order
// without claiming them.
func (r *TaskRepository) ListPendingTasks(ctx context.Context, limit int) ([]*contracts.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	return r.queryTasks(ctx, query, limit)
}

// ClaimPendingTasks atomically moves up to limit pending tasks to
// RUNNING in FIFO order. SKIP LOCKED makes rows claimed by one worker
// invisible to concurrent claims, so a task can never be picked up
// twice.
func (r *TaskRepository) ClaimPendingTasks(ctx context.Context, limit int) ([]*contracts.Task, error) {
	query := `
		UPDATE tasks SET status = 'running', started_at = $2
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	return r.queryTasks(ctx, query, limit, time.Now().UTC())
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*contracts.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*contracts.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// TransitionTask applies from -> to conditionally. A zero-row update
// means the task was not in the expected status; the current status is
// read back for the error.
func (r *TaskRepository) TransitionTask(ctx context.Context, id string, from, to contracts.TaskStatus, errorMessage string) error {
	if !from.CanTransitionTo(to) {
		return contracts.TransitionError{TaskID: id, From: from, To: to}
	}

	query := `
		UPDATE tasks SET status = $3, error_message = $4
		WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, from, to, nullable(errorMessage))
	if err != nil {
		return fmt.Errorf("failed to transition task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		task, gerr := r.GetTaskByID(ctx, id)
		if gerr != nil {
			return gerr
		}
		return contracts.TransitionError{TaskID: id, From: task.Status, To: to}
	}
	return nil
}

// UpdateProgress records pipeline progress for a running task.
func (r *TaskRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	query := `UPDATE tasks SET progress = $2 WHERE id = $1 AND status = 'running'`
	_, err := r.pool.Exec(ctx, query, id, progress)
	return err
}

// CompleteTask persists the result and moves the task to COMPLETED in
// one transaction. Either both writes survive or neither does; a
// COMPLETED task therefore always has a readable result.
func (r *TaskRepository) CompleteTask(ctx context.Context, taskID string, result *contracts.BacktestResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	combination, err := json.Marshal(result.Combination)
	if err != nil {
		return fmt.Errorf("failed to marshal combination: %w", err)
	}
	report, err := json.Marshal(result.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	navSeries, err := json.Marshal(result.NavSeries)
	if err != nil {
		return fmt.Errorf("failed to marshal nav series: %w", err)
	}
	trades, err := json.Marshal(result.Trades)
	if err != nil {
		return fmt.Errorf("failed to marshal trades: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO backtest_results (id, task_id, stock_code, start_date, end_date,
			combination, report, nav_series, trades, execution_time_ms, data_point_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		result.ID, taskID, result.StockCode, result.StartDate, result.EndDate,
		combination, report, navSeries, trades,
		result.ExecutionTime.Milliseconds(), result.DataPointCount, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET status = 'completed', progress = 100, result_id = $2, completed_at = $3
		WHERE id = $1 AND status = 'running'
	`, taskID, result.ID, now)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.TransitionError{TaskID: taskID, From: contracts.StatusRunning, To: contracts.StatusCompleted}
	}

	_, err = tx.Exec(ctx, `
		UPDATE batches SET completed_count = completed_count + 1
		WHERE id = (SELECT batch_id FROM tasks WHERE id = $1)
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to update batch counters: %w", err)
	}

	return tx.Commit(ctx)
}

// FailTask records the error and moves the task to FAILED in one
// transaction.
func (r *TaskRepository) FailTask(ctx context.Context, taskID string, errorMessage string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET status = 'failed', error_message = $2, completed_at = $3
		WHERE id = $1 AND status = 'running'
	`, taskID, errorMessage, now)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.TransitionError{TaskID: taskID, From: contracts.StatusRunning, To: contracts.StatusFailed}
	}

	_, err = tx.Exec(ctx, `
		UPDATE batches SET failed_count = failed_count + 1
		WHERE id = (SELECT batch_id FROM tasks WHERE id = $1)
	`, taskID)
	if err != nil {
		return fmt.Errorf("failed to update batch counters: %w", err)
	}

	return tx.Commit(ctx)
}

// CreateBatch inserts a new batch row.
func (r *TaskRepository) CreateBatch(ctx context.Context, batch *contracts.Batch) error {
	query := `
		INSERT INTO batches (id, name, total_count, completed_count, failed_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		batch.ID, batch.Name, batch.TotalCount, batch.CompletedCount, batch.FailedCount, batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// GetBatchByID retrieves one batch with its aggregate counters.
func (r *TaskRepository) GetBatchByID(ctx context.Context, id string) (*contracts.Batch, error) {
	query := `
		SELECT id, name, total_count, completed_count, failed_count, created_at
		FROM batches WHERE id = $1
	`
	var b contracts.Batch
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.TotalCount, &b.CompletedCount, &b.FailedCount, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetTasksByBatch returns all member tasks of a batch.
func (r *TaskRepository) GetTasksByBatch(ctx context.Context, batchID string) ([]*contracts.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE batch_id = $1 ORDER BY created_at ASC`
	return r.queryTasks(ctx, query, batchID)
}
