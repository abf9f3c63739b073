package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/internal/replay"
	"github.com/wonny/chronos/internal/signal"
	"github.com/wonny/chronos/internal/simulator"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/logger"
)

// Orchestrator owns the task lifecycle: it validates and enqueues
// tasks, claims pending work, drives each claimed task through the
// replay -> signal -> simulation pipeline, and records the outcome.
// It is the only writer of task status.
type Orchestrator struct {
	store     contracts.TaskStore
	factors   contracts.FactorStore
	replayer  *replay.Replayer
	generator *signal.Generator
	simCfg    config.SimulatorConfig
	cfg       config.OrchestratorConfig
	logger    *logger.Logger

	// cancelRequests carries cancellation flags for RUNNING tasks. The
	// pipeline checks the flag between snapshots; a cancelled task
	// stops cleanly at the next boundary.
	mu             sync.Mutex
	cancelRequests map[string]bool
}

var idSeq atomic.Uint64

// New creates an orchestrator over the given stores and pipeline
// components.
func New(store contracts.TaskStore, factors contracts.FactorStore, replayer *replay.Replayer, generator *signal.Generator, simCfg config.SimulatorConfig, cfg config.OrchestratorConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:          store,
		factors:        factors,
		replayer:       replayer,
		generator:      generator,
		simCfg:         simCfg,
		cfg:            cfg,
		logger:         log,
		cancelRequests: make(map[string]bool),
	}
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s_%04d", prefix, time.Now().UTC().Format("20060102_150405"), idSeq.Add(1)%10000)
}

// Submit validates a task, assigns it an ID, and enqueues it PENDING.
// Invalid parameters are rejected before the task ever enters the
// queue.
func (o *Orchestrator) Submit(ctx context.Context, task *contracts.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if _, err := o.factors.GetCombinationByID(ctx, task.CombinationID); err != nil {
		return contracts.ValidationError{Field: "combination_id", Message: fmt.Sprintf("unknown combination %q", task.CombinationID)}
	}

	if task.ID == "" {
		task.ID = newID("task")
	}
	task.Status = contracts.StatusPending
	task.Progress = 0
	task.ErrorMessage = ""
	task.CreatedAt = time.Now().UTC()

	if err := o.store.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"stock":   task.StockCode,
	}).Info("Task submitted")
	return nil
}

// SubmitBatch enqueues a group of tasks under one batch ID. Every task
// must pass the same checks Submit applies, combination lookup
// included, before the batch row is written; otherwise a later
// rejection would strand a batch whose total count can never be met.
func (o *Orchestrator) SubmitBatch(ctx context.Context, name string, tasks []*contracts.Task) (*contracts.Batch, error) {
	if len(tasks) == 0 {
		return nil, contracts.ValidationError{Field: "tasks", Message: "batch is empty"}
	}
	known := make(map[string]bool)
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if !known[t.CombinationID] {
			if _, err := o.factors.GetCombinationByID(ctx, t.CombinationID); err != nil {
				return nil, contracts.ValidationError{Field: "combination_id", Message: fmt.Sprintf("unknown combination %q", t.CombinationID)}
			}
			known[t.CombinationID] = true
		}
	}

	batch := &contracts.Batch{
		ID:         newID("batch"),
		Name:       name,
		TotalCount: len(tasks),
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	for _, t := range tasks {
		t.BatchID = batch.ID
		if err := o.Submit(ctx, t); err != nil {
			return batch, err
		}
	}
	return batch, nil
}

// Run polls for pending work until the context is cancelled. One poll
// cycle claims and executes up to BatchSize tasks sequentially.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.logger.WithFields(map[string]interface{}{
		"poll_interval": o.cfg.PollInterval.String(),
		"batch_size":    o.cfg.BatchSize,
	}).Info("Orchestrator started")

	for {
		if err := o.PollAndDispatch(ctx); err != nil {
			o.logger.WithError(err).Error("Poll cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollAndDispatch claims up to BatchSize pending tasks and executes
// them. A task failure is contained to that task: the error is
// recorded on it and the remaining claimed tasks still run.
func (o *Orchestrator) PollAndDispatch(ctx context.Context) error {
	tasks, err := o.store.ClaimPendingTasks(ctx, o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("claim pending tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	o.logger.WithFields(map[string]interface{}{"claimed": len(tasks)}).Info("Claimed tasks")

	for _, task := range tasks {
		if err := o.execute(ctx, task); err != nil {
			o.logger.WithError(err).WithFields(map[string]interface{}{
				"task_id": task.ID,
			}).Error("Task failed")
			if ferr := o.store.FailTask(ctx, task.ID, err.Error()); ferr != nil {
				o.logger.WithError(ferr).Error("Could not record task failure")
			}
		}
	}
	return nil
}

// execute runs one claimed task end to end. The caller records any
// returned error on the task; a nil return means the task reached
// COMPLETED or CANCELLED.
func (o *Orchestrator) execute(ctx context.Context, task *contracts.Task) error {
	started := time.Now()
	defer o.clearCancel(task.ID)

	combination, err := o.factors.GetCombinationByID(ctx, task.CombinationID)
	if err != nil {
		return contracts.ExecutionError{Stage: "load_combination", Err: err}
	}

	stream, err := o.replayer.Replay(ctx, task.StockCode, task.StartDate, task.EndDate, combination, replay.ModeBacktest)
	if err != nil {
		return contracts.ExecutionError{Stage: "replay", Err: err}
	}

	sim := simulator.New(o.simCfg, o.logger)
	sim.Initialize(task.InitialCapital)

	total := stream.Total()
	emitted := 0

	for {
		if o.cancelRequested(task.ID) {
			if terr := o.store.TransitionTask(ctx, task.ID, contracts.StatusRunning, contracts.StatusCancelled, ""); terr != nil {
				return terr
			}
			o.logger.WithFields(map[string]interface{}{"task_id": task.ID}).Info("Task cancelled")
			return nil
		}

		snapshot, ok, err := stream.Next(ctx)
		if err != nil {
			return contracts.ExecutionError{Stage: "replay", Err: err}
		}
		if !ok {
			break
		}
		emitted++

		sig := o.generator.ApplyFilters(o.generator.Generate(snapshot, combination))
		sim.Step(sig, snapshot.Price.Close, snapshot.Timestamp)

		if o.cfg.ProgressInterval > 0 && emitted%o.cfg.ProgressInterval == 0 && total > 0 {
			pct := emitted * 100 / total
			if perr := o.store.UpdateProgress(ctx, task.ID, pct); perr != nil {
				o.logger.WithError(perr).Warn("Progress update failed")
			}
		}
	}

	if emitted == 0 {
		return contracts.ExecutionError{
			Stage: "replay",
			Err: contracts.DataNotFoundError{
				StockCode: task.StockCode,
				Date:      task.StartDate,
				Kind:      "snapshot",
			},
		}
	}

	result := &contracts.BacktestResult{
		ID:             newID("result"),
		TaskID:         task.ID,
		StockCode:      task.StockCode,
		StartDate:      task.StartDate,
		EndDate:        task.EndDate,
		Combination:    *combination,
		Report:         sim.Report(),
		NavSeries:      sim.NavSeries(),
		Trades:         sim.Trades(),
		ExecutionTime:  time.Since(started),
		DataPointCount: emitted,
		CreatedAt:      time.Now().UTC(),
	}

	if err := o.store.CompleteTask(ctx, task.ID, result); err != nil {
		return contracts.ExecutionError{Stage: "persist_result", Err: err}
	}

	o.logger.WithFields(map[string]interface{}{
		"task_id":      task.ID,
		"snapshots":    emitted,
		"skipped":      stream.Skipped(),
		"trades":       len(result.Trades),
		"total_return": result.Report.TotalReturn,
	}).Info("Task completed")
	return nil
}

// Cancel stops a task. PENDING tasks are cancelled in the store
// directly; RUNNING tasks are flagged and stop at the next snapshot
// boundary. Terminal tasks cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) error {
	task, err := o.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	switch task.Status {
	case contracts.StatusPending:
		return o.store.TransitionTask(ctx, taskID, contracts.StatusPending, contracts.StatusCancelled, "")
	case contracts.StatusRunning:
		o.mu.Lock()
		o.cancelRequests[taskID] = true
		o.mu.Unlock()
		return nil
	default:
		return contracts.TransitionError{TaskID: taskID, From: task.Status, To: contracts.StatusCancelled}
	}
}

// Requeue returns a FAILED or CANCELLED task to PENDING with its error
// message cleared, so a later poll picks it up again.
func (o *Orchestrator) Requeue(ctx context.Context, taskID string) error {
	task, err := o.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status != contracts.StatusFailed && task.Status != contracts.StatusCancelled {
		return contracts.TransitionError{TaskID: taskID, From: task.Status, To: contracts.StatusPending}
	}
	return o.store.TransitionTask(ctx, taskID, task.Status, contracts.StatusPending, "")
}

func (o *Orchestrator) cancelRequested(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelRequests[taskID]
}

func (o *Orchestrator) clearCancel(taskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancelRequests, taskID)
}
