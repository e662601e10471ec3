package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"homekeep/internal/date"
)

const taskColumns = `id, name, description, frequency_days, next_due_date,
	last_completed_date, last_completion_notes, created_at`

type TaskRepo struct {
	db DBTX
}

func NewTaskRepo(db DBTX) *TaskRepo {
	return &TaskRepo{db: db}
}

// WithTx returns a repo bound to tx.
func (r *TaskRepo) WithTx(tx *sql.Tx) *TaskRepo {
	return &TaskRepo{db: tx}
}

type TaskInsert struct {
	ID            string
	Name          string
	Description   *string
	FrequencyDays int
	NextDueDate   date.Date
	CreatedAt     time.Time
}

func (r *TaskRepo) Insert(ctx context.Context, in TaskInsert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, description, frequency_days, next_due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, in.ID, in.Name, in.Description, in.FrequencyDays, in.NextDueDate, in.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("task insert: %w", err)
	}
	return nil
}

// Get returns nil, nil when no task has the id.
func (r *TaskRepo) Get(ctx context.Context, id string) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTaskRow(row)
}

func (r *TaskRepo) GetByName(ctx context.Context, name string) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE name = ?`, name)
	return scanTaskRow(row)
}

// FindByIDPrefix returns at most limit tasks whose id starts with prefix.
func (r *TaskRepo) FindByIDPrefix(ctx context.Context, prefix string, limit int) ([]Task, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id LIKE ? ESCAPE '\'
		ORDER BY id ASC
		LIMIT ?
	`, escaped+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("task prefix lookup: %w", err)
	}
	return collectTasks(rows, "task prefix lookup")
}

// ListByNextDue returns every task, soonest (or most overdue) first.
func (r *TaskRepo) ListByNextDue(ctx context.Context) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY next_due_date ASC, name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("task list: %w", err)
	}
	return collectTasks(rows, "task list")
}

// ListDueOnOrBefore returns tasks whose next due date is on or before d.
func (r *TaskRepo) ListDueOnOrBefore(ctx context.Context, d date.Date) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE next_due_date <= ?
		ORDER BY next_due_date ASC, name ASC, id ASC
	`, d)
	if err != nil {
		return nil, fmt.Errorf("task due list: %w", err)
	}
	return collectTasks(rows, "task due list")
}

// ApplyCompletion records the latest completion on the task row and moves
// its next due date. Returns ErrNotFound when no row was updated.
func (r *TaskRepo) ApplyCompletion(ctx context.Context, id string, completedOn date.Date, notes *string, nextDue date.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET last_completed_date = ?, last_completion_notes = ?, next_due_date = ?
		WHERE id = ?
	`, completedOn, notes, nextDue, id)
	if err != nil {
		return fmt.Errorf("task apply completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task apply completion rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(row scanner) (*Task, error) {
	var (
		t           Task
		description sql.NullString
		lastDone    date.Date
		lastNotes   sql.NullString
	)
	if err := row.Scan(
		&t.ID, &t.Name, &description, &t.FrequencyDays, &t.NextDueDate,
		&lastDone, &lastNotes, &t.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("task scan: %w", err)
	}

	if description.Valid {
		v := description.String
		t.Description = &v
	}
	if !lastDone.IsZero() {
		t.LastCompletedDate = &lastDone
	}
	if lastNotes.Valid {
		v := lastNotes.String
		t.LastCompletionNotes = &v
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows, op string) ([]Task, error) {
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}
