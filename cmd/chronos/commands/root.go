package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "chronos",
	Short: "Chronos - factor backtest orchestration engine",
	Long: `Chronos runs factor-driven backtests over historical A-share data.

Tasks move through a queue: submit a backtest, a worker claims it,
replays the date range snapshot by snapshot, generates signals from
the configured factor combination, simulates the portfolio, and
persists the performance report.

Usage:
  go run ./cmd/chronos [command]

Examples:
  go run ./cmd/chronos api
  go run ./cmd/chronos worker
  go run ./cmd/chronos backtest --stock 600519 --start 2024-01-01 --end 2024-06-30
  go run ./cmd/chronos task status task_20240101_120000_0001`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
