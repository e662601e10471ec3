package storage

import (
	"time"

	"homekeep/internal/date"
)

type Task struct {
	ID                  string     `json:"id" yaml:"id"`
	Name                string     `json:"name" yaml:"name"`
	Description         *string    `json:"description" yaml:"description,omitempty"`
	FrequencyDays       int        `json:"frequency_days" yaml:"frequency_days"`
	NextDueDate         date.Date  `json:"next_due_date" yaml:"next_due_date"`
	LastCompletedDate   *date.Date `json:"last_completed_date" yaml:"last_completed_date,omitempty"`
	LastCompletionNotes *string    `json:"last_completion_notes" yaml:"last_completion_notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at" yaml:"created_at"`
}

// Completion is one row of the completion ledger.
type Completion struct {
	Seq               int64     `json:"-" yaml:"-"`
	ID                string    `json:"id" yaml:"id"`
	TaskID            string    `json:"task_id" yaml:"task_id"`
	CompletedOn       date.Date `json:"date" yaml:"date"`
	Notes             *string   `json:"notes" yaml:"notes,omitempty"`
	DaysSincePrevious *int      `json:"days_since_previous" yaml:"days_since_previous"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
}
