package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd shows queue and system status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and system status",
	Long: `Prints database health and the head of the pending task queue.

Example:
  go run ./cmd/chronos status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	health, err := rt.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	fmt.Printf("Database   healthy=%v (%dms, %d/%d conns)\n",
		health.Healthy, health.ResponseTime.Milliseconds(),
		health.Stats.AcquiredConns, health.Stats.MaxConns)
	fmt.Printf("Redis      enabled=%v\n\n", rt.redis.Enabled())

	pending, err := rt.taskRepo.ListPendingTasks(ctx, 20)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}

	if len(pending) == 0 {
		fmt.Println("Queue empty")
		return nil
	}

	fmt.Printf("Pending tasks (%d shown):\n", len(pending))
	for _, t := range pending {
		fmt.Printf("  %s  %s  %s ~ %s\n", t.ID, t.StockCode,
			t.StartDate.Format("2006-01-02"), t.EndDate.Format("2006-01-02"))
	}
	return nil
}
