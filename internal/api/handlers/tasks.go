package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/internal/orchestrator"
	"github.com/wonny/chronos/pkg/logger"
)

// TaskHandler handles task and batch API endpoints. Writes go through
// the orchestrator so every status change respects the state machine;
// reads go straight to the stores.
type TaskHandler struct {
	orch    *orchestrator.Orchestrator
	tasks   contracts.TaskStore
	results contracts.ResultStore
	logger  *logger.Logger
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(orch *orchestrator.Orchestrator, tasks contracts.TaskStore, results contracts.ResultStore, log *logger.Logger) *TaskHandler {
	return &TaskHandler{orch: orch, tasks: tasks, results: results, logger: log}
}

// CreateTaskRequest is the task submission payload.
type CreateTaskRequest struct {
	Name           string  `json:"name"`
	StockCode      string  `json:"stock_code"`
	StartDate      string  `json:"start_date"` // YYYY-MM-DD
	EndDate        string  `json:"end_date"`   // YYYY-MM-DD
	InitialCapital float64 `json:"initial_capital"`
	CombinationID  string  `json:"combination_id"`
}

func (req *CreateTaskRequest) toTask() (*contracts.Task, error) {
	start, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, contracts.ValidationError{Field: "start_date", Message: "expected YYYY-MM-DD"}
	}
	end, err := time.ParseInLocation("2006-01-02", req.EndDate, time.UTC)
	if err != nil {
		return nil, contracts.ValidationError{Field: "end_date", Message: "expected YYYY-MM-DD"}
	}
	return &contracts.Task{
		Name:           req.Name,
		StockCode:      req.StockCode,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: req.InitialCapital,
		CombinationID:  req.CombinationID,
	}, nil
}

// Create submits a new backtest task.
// POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := req.toTask()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orch.Submit(r.Context(), task); err != nil {
		var verr contracts.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to submit task")
		respondError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// Get returns one task with its current status and progress.
// GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	task, err := h.tasks.GetTaskByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Cancel cancels a pending or running task.
// POST /api/tasks/{id}/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.orch.Cancel(r.Context(), id); err != nil {
		var terr contracts.TransitionError
		if errors.As(err, &terr) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "cancel requested"})
}

// Requeue returns a failed or cancelled task to the queue.
// POST /api/tasks/{id}/requeue
func (h *TaskHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.orch.Requeue(r.Context(), id); err != nil {
		var terr contracts.TransitionError
		if errors.As(err, &terr) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "requeued"})
}

// GetResult returns the full backtest result of a completed task.
// GET /api/tasks/{id}/result
func (h *TaskHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.results.GetResultByTaskID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "no result for task")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateBatchRequest is the batch submission payload.
type CreateBatchRequest struct {
	Name  string              `json:"name"`
	Tasks []CreateTaskRequest `json:"tasks"`
}

// CreateBatch submits a group of tasks under one batch.
// POST /api/batches
func (h *TaskHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tasks := make([]*contracts.Task, 0, len(req.Tasks))
	for _, tr := range req.Tasks {
		task, err := tr.toTask()
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		tasks = append(tasks, task)
	}

	batch, err := h.orch.SubmitBatch(r.Context(), req.Name, tasks)
	if err != nil {
		var verr contracts.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to submit batch")
		respondError(w, http.StatusInternalServerError, "failed to submit batch")
		return
	}

	respondJSON(w, http.StatusCreated, batch)
}

// GetBatch returns a batch with its aggregate counters.
// GET /api/batches/{id}
func (h *TaskHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	batch, err := h.tasks.GetBatchByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// GetBatchTasks returns the member tasks of a batch.
// GET /api/batches/{id}/tasks
func (h *TaskHandler) GetBatchTasks(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tasks, err := h.tasks.GetTasksByBatch(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list batch tasks")
		respondError(w, http.StatusInternalServerError, "failed to list batch tasks")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}
