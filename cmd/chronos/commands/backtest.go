package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/internal/factorcfg"
)

// backtestCmd runs one backtest synchronously and prints the report.
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest synchronously",
	Long: `Submits a backtest task and executes it in-process, then prints
the performance report.

Flags:
  --stock             6-digit stock code (required)
  --start             start date (YYYY-MM-DD, required)
  --end               end date (YYYY-MM-DD, required)
  --capital           initial capital (default: 1,000,000)
  --combination       factor combination ID
  --combination-file  factor combination YAML (stored before the run)

Example:
  go run ./cmd/chronos backtest --stock 600519 --start 2024-01-01 --end 2024-06-30 --combination comb_momentum
  go run ./cmd/chronos backtest --stock 600519 --start 2024-01-01 --end 2024-06-30 --combination-file factors.yaml`,
	RunE: runBacktest,
}

var (
	backtestStock    string
	backtestStart    string
	backtestEnd      string
	backtestCapital  float64
	backtestComb     string
	backtestCombFile string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestStock, "stock", "", "6-digit stock code")
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "end date (YYYY-MM-DD)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 1_000_000, "initial capital")
	backtestCmd.Flags().StringVar(&backtestComb, "combination", "", "factor combination ID")
	backtestCmd.Flags().StringVar(&backtestCombFile, "combination-file", "", "factor combination YAML file")

	backtestCmd.MarkFlagRequired("stock")
	backtestCmd.MarkFlagRequired("start")
	backtestCmd.MarkFlagRequired("end")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	start, err := time.ParseInLocation("2006-01-02", backtestStart, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", backtestEnd, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	combinationID := backtestComb
	if backtestCombFile != "" {
		combination, err := factorcfg.Load(backtestCombFile)
		if err != nil {
			return fmt.Errorf("load combination file: %w", err)
		}
		if err := rt.factorRepo.SaveCombination(ctx, combination); err != nil {
			return fmt.Errorf("store combination: %w", err)
		}
		combinationID = combination.ID
	}
	if combinationID == "" {
		return fmt.Errorf("either --combination or --combination-file is required")
	}

	task := &contracts.Task{
		Name:           fmt.Sprintf("cli backtest %s", backtestStock),
		StockCode:      backtestStock,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: backtestCapital,
		CombinationID:  combinationID,
	}

	if err := rt.orch.Submit(ctx, task); err != nil {
		return err
	}

	fmt.Printf("Running backtest %s (%s, %s ~ %s)...\n",
		task.ID, backtestStock, backtestStart, backtestEnd)

	if err := rt.orch.PollAndDispatch(ctx); err != nil {
		return err
	}

	done, err := rt.taskRepo.GetTaskByID(ctx, task.ID)
	if err != nil {
		return err
	}
	if done.Status != contracts.StatusCompleted {
		return fmt.Errorf("backtest %s: %s", done.Status, done.ErrorMessage)
	}

	result, err := rt.resultRepo.GetResultByTaskID(ctx, task.ID)
	if err != nil {
		return err
	}

	printReport(result)
	return nil
}

func printReport(result *contracts.BacktestResult) {
	r := result.Report

	fmt.Println()
	fmt.Printf("Backtest %s  (%s ~ %s, %d trading days)\n",
		result.StockCode,
		result.StartDate.Format("2006-01-02"),
		result.EndDate.Format("2006-01-02"),
		result.DataPointCount)
	fmt.Printf("Combination: %s\n\n", result.Combination.ID)

	fmt.Printf("  Total return    %8.2f%%\n", r.TotalReturn*100)
	fmt.Printf("  Annual return   %8.2f%%\n", r.AnnualReturn*100)
	fmt.Printf("  Max drawdown    %8.2f%%\n", r.MaxDrawdown*100)
	fmt.Printf("  Volatility      %8.2f%%\n", r.Volatility*100)
	printRatio("Sharpe", r.SharpeRatio)
	printRatio("Sortino", r.SortinoRatio)
	printRatio("VaR 95%", r.VaR95)
	fmt.Printf("  Trades          %8d\n", r.TradeCount)
	fmt.Printf("  Win rate        %8.2f%%\n", r.WinRate*100)
	fmt.Printf("  Execution       %8s\n", result.ExecutionTime.Round(time.Millisecond))
}

func printRatio(name string, v *float64) {
	if v == nil {
		fmt.Printf("  %-15s %8s\n", name, "n/a")
		return
	}
	fmt.Printf("  %-15s %8.3f\n", name, *v)
}
