package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/chronos/internal/scheduler"
	"github.com/wonny/chronos/internal/scheduler/jobs"
)

// workerCmd starts the task worker.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the backtest worker",
	Long: `Starts the worker that claims pending tasks and executes them.

The worker polls the queue on the configured interval, claims up to
the batch size atomically, and runs each task through the replay,
signal, and simulation pipeline. Failed tasks stay in the queue as
FAILED and can be requeued.

Example:
  go run ./cmd/chronos worker
  go run ./cmd/chronos worker --once`,
	RunE: runWorker,
}

var workerOnce bool

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run one poll cycle and exit")
}

func runWorker(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if workerOnce {
		return rt.orch.PollAndDispatch(cmd.Context())
	}

	sched := scheduler.New(rt.log)
	if err := sched.AddJob(jobs.NewPollJob(rt.orch, rt.cfg.Orchestrator, rt.log)); err != nil {
		return fmt.Errorf("register poll job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	// Run the first cycle immediately instead of waiting a full
	// interval for the cron tick.
	if err := rt.orch.PollAndDispatch(context.Background()); err != nil {
		rt.log.WithError(err).Error("Initial poll cycle failed")
	}

	fmt.Printf("Worker started (poll every %s, batch size %d)\n",
		rt.cfg.Orchestrator.PollInterval, rt.cfg.Orchestrator.BatchSize)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}
