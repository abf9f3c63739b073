package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/logger"
)

// ProgressHandler streams task progress over a websocket. Clients get
// a snapshot immediately, then an update whenever progress or status
// changes, and a final frame when the task reaches a terminal status.
type ProgressHandler struct {
	tasks    contracts.TaskStore
	logger   *logger.Logger
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewProgressHandler creates a progress streaming handler.
func NewProgressHandler(tasks contracts.TaskStore, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		tasks:  tasks,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: time.Second,
	}
}

// ProgressUpdate is one websocket frame.
type ProgressUpdate struct {
	TaskID   string               `json:"task_id"`
	Status   contracts.TaskStatus `json:"status"`
	Progress int                  `json:"progress"`
	Error    string               `json:"error,omitempty"`
	Terminal bool                 `json:"terminal"`
}

// Stream upgrades the connection and pushes progress frames until the
// task finishes or the client goes away.
// GET /api/tasks/{id}/progress
func (h *ProgressHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	if _, err := h.tasks.GetTaskByID(ctx, id); err != nil {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastStatus contracts.TaskStatus
	lastProgress := -1

	for {
		task, err := h.tasks.GetTaskByID(ctx, id)
		if err != nil {
			h.logger.WithError(err).WithFields(map[string]interface{}{
				"task_id": id,
			}).Warn("Progress poll failed")
			return
		}

		terminal := task.Status == contracts.StatusCompleted ||
			task.Status == contracts.StatusFailed ||
			task.Status == contracts.StatusCancelled

		if task.Status != lastStatus || task.Progress != lastProgress {
			update := ProgressUpdate{
				TaskID:   task.ID,
				Status:   task.Status,
				Progress: task.Progress,
				Error:    task.ErrorMessage,
				Terminal: terminal,
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			lastStatus = task.Status
			lastProgress = task.Progress
		}

		if terminal {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
