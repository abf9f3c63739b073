package contracts

import (
	"fmt"
	"time"
)

// ValidationError reports a bad task or configuration parameter.
// Tasks that fail validation never enter the queue.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransitionError reports an illegal state-machine move. The task's
// state is left unchanged.
type TransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskID, e.From, e.To)
}

// DataNotFoundError reports missing price or factor data for a date.
// The replayer skips the date; the task only fails when no usable
// snapshot remains.
type DataNotFoundError struct {
	StockCode string
	Date      time.Time
	Kind      string // "price", "factor", "calendar"
}

func (e DataNotFoundError) Error() string {
	return fmt.Sprintf("%s data not found for %s on %s", e.Kind, e.StockCode, e.Date.Format("2006-01-02"))
}

// OrderingError reports a violated timeline invariant. Fatal to the task.
type OrderingError struct {
	Index int
	Prev  time.Time
	Curr  time.Time
}

func (e OrderingError) Error() string {
	return fmt.Sprintf("timestamp at index %d (%s) is not after predecessor (%s)",
		e.Index, e.Curr.Format("2006-01-02"), e.Prev.Format("2006-01-02"))
}

// InsufficientFundsError reports a buy that could not be fully funded.
// The simulator scales the order down instead of failing the task.
type InsufficientFundsError struct {
	Need float64
	Have float64
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %.2f, have %.2f", e.Need, e.Have)
}

// ExecutionError wraps anything unexpected during replay, scoring, or
// simulation. Caught once at the orchestrator boundary and recorded as
// the task's error message.
type ExecutionError struct {
	Stage string // "replay", "signal", "simulate", "persist"
	Err   error
}

func (e ExecutionError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e ExecutionError) Unwrap() error {
	return e.Err
}
