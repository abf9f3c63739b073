package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/chronos/internal/orchestrator"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/logger"
)

// PollJob drives the orchestrator's claim-and-execute cycle on a cron
// schedule derived from the configured poll interval.
type PollJob struct {
	orch   *orchestrator.Orchestrator
	cfg    config.OrchestratorConfig
	logger *logger.Logger
}

// NewPollJob creates the task polling job.
func NewPollJob(orch *orchestrator.Orchestrator, cfg config.OrchestratorConfig, log *logger.Logger) *PollJob {
	return &PollJob{orch: orch, cfg: cfg, logger: log}
}

// Name returns the job name.
func (j *PollJob) Name() string {
	return "task_poll"
}

// Schedule returns the poll interval as a cron expression.
func (j *PollJob) Schedule() string {
	return fmt.Sprintf("@every %s", j.cfg.PollInterval)
}

// Run claims and executes one cycle of pending tasks.
func (j *PollJob) Run(ctx context.Context) error {
	return j.orch.PollAndDispatch(ctx)
}
