package contracts

import (
	"testing"
	"time"
)

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	all := []TaskStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}

	legal := map[TaskStatus]map[TaskStatus]bool{
		StatusPending:   {StatusRunning: true, StatusCancelled: true},
		StatusRunning:   {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
		StatusFailed:    {StatusPending: true},
		StatusCancelled: {StatusPending: true},
		StatusCompleted: {},
	}

	// Exhaustive check over all 5x5 pairs.
	for _, from := range all {
		for _, to := range all {
			got := from.CanTransitionTo(to)
			want := legal[from][to]
			if got != want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() {
		t.Error("completed should be terminal")
	}
	for _, s := range []TaskStatus{StatusPending, StatusRunning, StatusFailed, StatusCancelled} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTaskStatus_Valid(t *testing.T) {
	if TaskStatus("archived").Valid() {
		t.Error("unknown status should be invalid")
	}
	if !StatusPending.Valid() {
		t.Error("pending should be valid")
	}
}

func TestTask_Validate(t *testing.T) {
	valid := func() *Task {
		return &Task{
			StockCode:      "600519",
			StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
			InitialCapital: 1_000_000,
			CombinationID:  "comb_default",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Task)
		field  string
	}{
		{"empty stock code", func(tk *Task) { tk.StockCode = "" }, "stock_code"},
		{"short stock code", func(tk *Task) { tk.StockCode = "6005" }, "stock_code"},
		{"alpha stock code", func(tk *Task) { tk.StockCode = "60051A" }, "stock_code"},
		{"end before start", func(tk *Task) { tk.EndDate = tk.StartDate.AddDate(0, 0, -1) }, "date_range"},
		{"end equals start", func(tk *Task) { tk.EndDate = tk.StartDate }, "date_range"},
		{"zero capital", func(tk *Task) { tk.InitialCapital = 0 }, "initial_capital"},
		{"negative capital", func(tk *Task) { tk.InitialCapital = -100 }, "initial_capital"},
		{"missing combination", func(tk *Task) { tk.CombinationID = "" }, "combination_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid()
			tt.mutate(task)
			err := task.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("error field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

func TestBatch_Done(t *testing.T) {
	b := &Batch{TotalCount: 3, CompletedCount: 2, FailedCount: 0}
	if b.Done() {
		t.Error("batch with outstanding tasks should not be done")
	}
	b.FailedCount = 1
	if !b.Done() {
		t.Error("batch with completed+failed == total should be done")
	}
}
