package engine

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"homekeep/internal/date"
	"homekeep/internal/storage"
)

type CompleteInput struct {
	Notes *string
	// CompletedOn defaults to today when nil.
	CompletedOn *date.Date
}

type CompleteResult struct {
	Event storage.Completion `json:"event" yaml:"event"`
	Task  storage.Task       `json:"task" yaml:"task"`
}

// Complete appends a completion event for the task and advances its
// schedule in a single transaction. Completions of the same task are
// serialized; contended transactions are retried before giving up with
// ConcurrencyConflict.
func (s *Service) Complete(ctx context.Context, taskID string, in CompleteInput) (*CompleteResult, error) {
	notes := normalizeText(in.Notes)
	today := s.Today()
	on := today
	if in.CompletedOn != nil && !in.CompletedOn.IsZero() {
		on = *in.CompletedOn
	}

	unlock := s.locks.lock(taskID)
	defer unlock()

	var res *CompleteResult
	err := s.withRetry(ctx, taskID, func() error {
		return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			r, err := s.completeTx(ctx, tx, taskID, on, today, notes)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task completed",
		"task_id", taskID,
		"completed_on", on.String(),
		"next_due_date", res.Task.NextDueDate.String(),
	)
	return res, nil
}

func (s *Service) completeTx(ctx context.Context, tx *sql.Tx, taskID string, on, today date.Date, notes *string) (*CompleteResult, error) {
	tasks := s.tasks.WithTx(tx)
	completions := s.completions.WithTx(tx)

	t, err := tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NotFoundError{ID: taskID}
	}
	if on.After(today) {
		return nil, ValidationError{Field: "completed_on", Message: fmt.Sprintf("%s is in the future", on)}
	}
	if !on.InRange() {
		return nil, ValidationError{Field: "completed_on", Message: fmt.Sprintf("year must be between %d and %d", date.MinYear, date.MaxYear)}
	}
	// Checked again by applyCompletion; failing here keeps the ledger untouched.
	if _, err := nextDue(on, t.FrequencyDays); err != nil {
		return nil, err
	}

	prev, err := completions.Last(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var sincePrev *int
	if prev != nil {
		if on.Before(prev.CompletedOn) {
			return nil, ValidationError{
				Field:   "completed_on",
				Message: fmt.Sprintf("%s is before the last completion on %s", on, prev.CompletedOn),
			}
		}
		d := on.DaysSince(prev.CompletedOn)
		sincePrev = &d
	}

	ev := storage.Completion{
		ID:                s.newID(),
		TaskID:            taskID,
		CompletedOn:       on,
		Notes:             notes,
		DaysSincePrevious: sincePrev,
		CreatedAt:         s.clock.Now().UTC(),
	}
	seq, err := completions.Insert(ctx, storage.CompletionInsert{
		ID:                ev.ID,
		TaskID:            ev.TaskID,
		CompletedOn:       ev.CompletedOn,
		Notes:             ev.Notes,
		DaysSincePrevious: ev.DaysSincePrevious,
		CreatedAt:         ev.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	ev.Seq = seq

	updated, err := s.applyCompletion(ctx, tasks, taskID, on, notes)
	if err != nil {
		return nil, err
	}
	return &CompleteResult{Event: ev, Task: *updated}, nil
}

func (s *Service) withRetry(ctx context.Context, taskID string, fn func() error) error {
	attempts := s.maxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !s.retryable(err) {
			return err
		}
		s.logger.Warn("completion contended", "task_id", taskID, "attempt", attempt, "err", err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return ConcurrencyConflict{TaskID: taskID, Attempts: attempts, Err: err}
}

// History returns the task's completion events, newest first. The sequence
// reads from storage in batches as it is ranged over and can be ranged over
// again for a fresh read.
func (s *Service) History(ctx context.Context, taskID string) (iter.Seq2[storage.Completion, error], error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	batch := s.historyPageSize
	return func(yield func(storage.Completion, error) bool) {
		var cur *storage.Cursor
		for {
			page, err := s.completions.ListBefore(ctx, taskID, cur, batch)
			if err != nil {
				yield(storage.Completion{}, err)
				return
			}
			for _, c := range page {
				if !yield(c, nil) {
					return
				}
			}
			if len(page) < batch {
				return
			}
			last := page[len(page)-1]
			cur = &storage.Cursor{CompletedOn: last.CompletedOn, Seq: last.Seq}
		}
	}, nil
}

type HistoryPage struct {
	Items      []storage.Completion `json:"items" yaml:"items"`
	Total      int                  `json:"total" yaml:"total"`
	Page       int                  `json:"page" yaml:"page"`
	PageSize   int                  `json:"page_size" yaml:"page_size"`
	TotalPages int                  `json:"total_pages" yaml:"total_pages"`
}

// HistoryPage returns one page (1-based) of the task's history, newest
// first. pageSize 0 selects the configured default.
func (s *Service) HistoryPage(ctx context.Context, taskID string, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		return nil, ValidationError{Field: "page", Message: "must be at least 1"}
	}
	if pageSize == 0 {
		pageSize = s.historyPageSize
	}
	if pageSize < 1 || pageSize > MaxHistoryPageSize {
		return nil, ValidationError{Field: "page_size", Message: fmt.Sprintf("must be between 1 and %d", MaxHistoryPageSize)}
	}
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	total, err := s.completions.CountByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	items, err := s.completions.ListPage(ctx, taskID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}
