package engine

import (
	"context"

	"homekeep/internal/date"
	"homekeep/internal/storage"
)

type DueStatus string

const (
	StatusOverdue  DueStatus = "overdue"
	StatusDueToday DueStatus = "due_today"
	StatusUpcoming DueStatus = "upcoming"
)

// ComputeStatus is the one place due-state is derived. Both sides are
// calendar dates, so time of day never shifts the answer.
func ComputeStatus(t storage.Task, today date.Date) DueStatus {
	switch c := t.NextDueDate.Compare(today); {
	case c < 0:
		return StatusOverdue
	case c == 0:
		return StatusDueToday
	default:
		return StatusUpcoming
	}
}

// DaysUntilDue is negative for overdue tasks.
func DaysUntilDue(t storage.Task, today date.Date) int {
	return t.NextDueDate.DaysSince(today)
}

// Status evaluates t against the engine clock.
func (s *Service) Status(t storage.Task) DueStatus {
	return ComputeStatus(t, s.Today())
}

type StatusSummary struct {
	Overdue  int `json:"overdue" yaml:"overdue"`
	DueToday int `json:"due_today" yaml:"due_today"`
	Upcoming int `json:"upcoming" yaml:"upcoming"`
}

func (s *Service) Summary(ctx context.Context) (StatusSummary, error) {
	tasks, err := s.tasks.ListByNextDue(ctx)
	if err != nil {
		return StatusSummary{}, err
	}
	today := s.Today()
	var sum StatusSummary
	for i := range tasks {
		switch ComputeStatus(tasks[i], today) {
		case StatusOverdue:
			sum.Overdue++
		case StatusDueToday:
			sum.DueToday++
		default:
			sum.Upcoming++
		}
	}
	return sum, nil
}
