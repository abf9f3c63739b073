package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/chronos/internal/api"
	"github.com/wonny/chronos/internal/api/handlers"
)

// apiCmd starts the REST API server.
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server for task submission and monitoring.

Endpoints:
  GET  /health                     - Health check
  POST /api/tasks                  - Submit a backtest task
  GET  /api/tasks/{id}             - Task status and progress
  POST /api/tasks/{id}/cancel      - Cancel a task
  POST /api/tasks/{id}/requeue     - Requeue a failed or cancelled task
  GET  /api/tasks/{id}/result      - Full backtest result
  GET  /api/tasks/{id}/progress    - Websocket progress stream
  POST /api/batches                - Submit a batch of tasks
  GET  /api/batches/{id}           - Batch status
  GET  /api/batches/{id}/tasks     - Batch member tasks
  POST /api/combinations           - Store a factor combination
  GET  /api/combinations           - List combinations
  GET  /api/combinations/{id}      - One combination

Example:
  go run ./cmd/chronos api
  go run ./cmd/chronos api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	taskHandler := handlers.NewTaskHandler(rt.orch, rt.taskRepo, rt.resultRepo, rt.log)
	factorHandler := handlers.NewFactorHandler(rt.factorRepo, rt.log)
	progressHandler := handlers.NewProgressHandler(rt.taskRepo, rt.log)

	router := api.NewRouter(taskHandler, factorHandler, progressHandler, rt.log)
	server := api.New(rt.cfg, rt.log, router)

	go func() {
		if err := server.Start(); err != nil {
			rt.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
