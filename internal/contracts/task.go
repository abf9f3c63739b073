package contracts

import (
	"fmt"
	"regexp"
	"time"
)

// TaskStatus represents the lifecycle state of a backtest task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// transitions is the single source of truth for legal status moves.
// COMPLETED is terminal; FAILED and CANCELLED can only be requeued.
var transitions = map[TaskStatus][]TaskStatus{
	StatusPending:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:    {StatusPending},
	StatusCancelled: {StatusPending},
	StatusCompleted: {},
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Task is one backtest request moving through the state machine.
type Task struct {
	ID             string     `json:"id"`
	BatchID        string     `json:"batch_id"`
	Name           string     `json:"name"`
	StockCode      string     `json:"stock_code"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	InitialCapital float64    `json:"initial_capital"`
	CombinationID  string     `json:"combination_id"`
	Status         TaskStatus `json:"status"`
	Progress       int        `json:"progress"` // 0-100
	ErrorMessage   string     `json:"error_message,omitempty"`
	ResultID       string     `json:"result_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// stockCodePattern matches 6-digit A-share codes (e.g. "600519", "000001").
var stockCodePattern = regexp.MustCompile(`^\d{6}$`)

// Validate checks task parameters before the task may enter the queue.
func (t *Task) Validate() error {
	if t.StockCode == "" {
		return ValidationError{Field: "stock_code", Message: "required"}
	}
	if !stockCodePattern.MatchString(t.StockCode) {
		return ValidationError{Field: "stock_code", Message: fmt.Sprintf("invalid code %q, expected 6 digits", t.StockCode)}
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return ValidationError{Field: "date_range", Message: "start_date and end_date are required"}
	}
	if !t.EndDate.After(t.StartDate) {
		return ValidationError{Field: "date_range", Message: "end_date must be after start_date"}
	}
	if t.InitialCapital <= 0 {
		return ValidationError{Field: "initial_capital", Message: "must be > 0"}
	}
	if t.CombinationID == "" {
		return ValidationError{Field: "combination_id", Message: "required"}
	}
	return nil
}

// Batch groups tasks submitted together and tracks aggregate progress.
type Batch struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	TotalCount     int       `json:"total_count"`
	CompletedCount int       `json:"completed_count"`
	FailedCount    int       `json:"failed_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Done reports whether every member task has reached a terminal outcome.
func (b *Batch) Done() bool {
	return b.CompletedCount+b.FailedCount >= b.TotalCount
}
