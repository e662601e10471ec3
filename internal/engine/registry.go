package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homekeep/internal/date"
	"homekeep/internal/storage"
)

type CreateTaskInput struct {
	Name          string
	Description   *string
	FrequencyDays int
	// NextDueDate defaults to today + FrequencyDays when nil.
	NextDueDate *date.Date
}

func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*storage.Task, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := validateFrequency(in.FrequencyDays); err != nil {
		return nil, err
	}

	due := s.Today().AddDays(in.FrequencyDays)
	if in.NextDueDate != nil && !in.NextDueDate.IsZero() {
		due = *in.NextDueDate
		if !due.InRange() {
			return nil, ValidationError{Field: "next_due_date", Message: fmt.Sprintf("year must be between %d and %d", date.MinYear, date.MaxYear)}
		}
	} else if !due.InRange() {
		return nil, ValidationError{Field: "frequency_days", Message: "pushes the next due date past year 9999"}
	}

	id := s.newID()
	err = s.tasks.Insert(ctx, storage.TaskInsert{
		ID:            id,
		Name:          name,
		Description:   normalizeText(in.Description),
		FrequencyDays: in.FrequencyDays,
		NextDueDate:   due,
		CreatedAt:     s.clock.Now().UTC(),
	})
	if errors.Is(err, storage.ErrDuplicateName) {
		return nil, ValidationError{Field: "name", Message: fmt.Sprintf("a task named %q already exists", name)}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created", "task_id", id, "name", name, "frequency_days", in.FrequencyDays, "next_due_date", due.String())
	return s.GetTask(ctx, id)
}

func (s *Service) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NotFoundError{ID: id}
	}
	return t, nil
}

// ListTasks returns every task ordered by next due date, soonest first.
func (s *Service) ListTasks(ctx context.Context) ([]storage.Task, error) {
	return s.tasks.ListByNextDue(ctx)
}

// DueTasks returns the tasks that are due today or overdue.
func (s *Service) DueTasks(ctx context.Context) ([]storage.Task, error) {
	return s.tasks.ListDueOnOrBefore(ctx, s.Today())
}

// ResolveTask finds a task by exact id, unique id prefix, or exact name.
func (s *Service) ResolveTask(ctx context.Context, ref string) (*storage.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ValidationError{Field: "task", Message: "is required"}
	}

	t, err := s.tasks.Get(ctx, ref)
	if err != nil || t != nil {
		return t, err
	}

	matches, err := s.tasks.FindByIDPrefix(ctx, ref, 2)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 1:
		return &matches[0], nil
	case 2:
		return nil, ValidationError{Field: "task", Message: fmt.Sprintf("id prefix %q is ambiguous", ref)}
	}

	t, err = s.tasks.GetByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NotFoundError{ID: ref}
	}
	return t, nil
}

func validateFrequency(days int) error {
	if days < 1 {
		return ValidationError{Field: "frequency_days", Message: "must be at least 1"}
	}
	if days > MaxFrequencyDays {
		return ValidationError{Field: "frequency_days", Message: fmt.Sprintf("must be at most %d", MaxFrequencyDays)}
	}
	return nil
}

// nextDue is the due date following a completion on the given day.
func nextDue(on date.Date, frequencyDays int) (date.Date, error) {
	next := on.AddDays(frequencyDays)
	if !next.InRange() {
		return date.Date{}, ValidationError{Field: "frequency_days", Message: "pushes the next due date past year 9999"}
	}
	return next, nil
}

// applyCompletion advances a task's schedule from a completion on the given
// date. Only the ledger calls it, with repos bound to its transaction.
func (s *Service) applyCompletion(ctx context.Context, tasks *storage.TaskRepo, id string, on date.Date, notes *string) (*storage.Task, error) {
	t, err := tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NotFoundError{ID: id}
	}

	next, err := nextDue(on, t.FrequencyDays)
	if err != nil {
		return nil, err
	}
	if err := tasks.ApplyCompletion(ctx, id, on, notes, next); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NotFoundError{ID: id}
		}
		return nil, err
	}

	completed := on
	t.LastCompletedDate = &completed
	t.LastCompletionNotes = notes
	t.NextDueDate = next
	return t, nil
}
