package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/chronos/internal/contracts"
)

// taskCmd groups task queue operations.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage queued tasks",
	Long: `Submit, inspect, cancel, and requeue backtest tasks.

Example:
  go run ./cmd/chronos task submit --stock 600519 --start 2024-01-01 --end 2024-06-30 --combination comb_momentum
  go run ./cmd/chronos task status task_20240101_120000_0001
  go run ./cmd/chronos task cancel task_20240101_120000_0001
  go run ./cmd/chronos task requeue task_20240101_120000_0001`,
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a task to the queue",
	RunE:  runTaskSubmit,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show task status and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStatus,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending or running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var taskRequeueCmd = &cobra.Command{
	Use:   "requeue <task-id>",
	Short: "Return a failed or cancelled task to the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRequeue,
}

var (
	taskStock   string
	taskStart   string
	taskEnd     string
	taskCapital float64
	taskComb    string
	taskName    string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskSubmitCmd, taskStatusCmd, taskCancelCmd, taskRequeueCmd)

	taskSubmitCmd.Flags().StringVar(&taskStock, "stock", "", "6-digit stock code")
	taskSubmitCmd.Flags().StringVar(&taskStart, "start", "", "start date (YYYY-MM-DD)")
	taskSubmitCmd.Flags().StringVar(&taskEnd, "end", "", "end date (YYYY-MM-DD)")
	taskSubmitCmd.Flags().Float64Var(&taskCapital, "capital", 1_000_000, "initial capital")
	taskSubmitCmd.Flags().StringVar(&taskComb, "combination", "", "factor combination ID")
	taskSubmitCmd.Flags().StringVar(&taskName, "name", "", "task name")

	taskSubmitCmd.MarkFlagRequired("stock")
	taskSubmitCmd.MarkFlagRequired("start")
	taskSubmitCmd.MarkFlagRequired("end")
	taskSubmitCmd.MarkFlagRequired("combination")
}

func runTaskSubmit(cmd *cobra.Command, args []string) error {
	start, err := time.ParseInLocation("2006-01-02", taskStart, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", taskEnd, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	task := &contracts.Task{
		Name:           taskName,
		StockCode:      taskStock,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: taskCapital,
		CombinationID:  taskComb,
	}
	if err := rt.orch.Submit(cmd.Context(), task); err != nil {
		return err
	}

	fmt.Printf("Submitted %s (%s, %s ~ %s)\n", task.ID, taskStock, taskStart, taskEnd)
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	task, err := rt.taskRepo.GetTaskByID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Task     %s\n", task.ID)
	fmt.Printf("Stock    %s  (%s ~ %s)\n", task.StockCode,
		task.StartDate.Format("2006-01-02"), task.EndDate.Format("2006-01-02"))
	fmt.Printf("Status   %s\n", task.Status)
	fmt.Printf("Progress %d%%\n", task.Progress)
	if task.ErrorMessage != "" {
		fmt.Printf("Error    %s\n", task.ErrorMessage)
	}
	if task.ResultID != "" {
		fmt.Printf("Result   %s\n", task.ResultID)
	}
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.orch.Cancel(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Cancel requested for %s\n", args[0])
	return nil
}

func runTaskRequeue(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.orch.Requeue(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Requeued %s\n", args[0])
	return nil
}
