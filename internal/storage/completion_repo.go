package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homekeep/internal/date"
)

const completionColumns = `seq, id, task_id, completed_on, notes, days_since_previous, created_at`

type CompletionRepo struct {
	db DBTX
}

func NewCompletionRepo(db DBTX) *CompletionRepo {
	return &CompletionRepo{db: db}
}

// WithTx returns a repo bound to tx.
func (r *CompletionRepo) WithTx(tx *sql.Tx) *CompletionRepo {
	return &CompletionRepo{db: tx}
}

type CompletionInsert struct {
	ID                string
	TaskID            string
	CompletedOn       date.Date
	Notes             *string
	DaysSincePrevious *int
	CreatedAt         time.Time
}

func (r *CompletionRepo) Insert(ctx context.Context, in CompletionInsert) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO task_completions (id, task_id, completed_on, notes, days_since_previous, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, in.ID, in.TaskID, in.CompletedOn, in.Notes, in.DaysSincePrevious, in.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("completion insert: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("completion last insert id: %w", err)
	}
	return seq, nil
}

// Last returns the most recent completion of a task, or nil if it has none.
func (r *CompletionRepo) Last(ctx context.Context, taskID string) (*Completion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+completionColumns+`
		FROM task_completions
		WHERE task_id = ?
		ORDER BY completed_on DESC, seq DESC
		LIMIT 1
	`, taskID)
	c, err := scanCompletion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("completion last: %w", err)
	}
	return c, nil
}

func (r *CompletionRepo) CountByTask(ctx context.Context, taskID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_completions WHERE task_id = ?`, taskID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("completion count: %w", err)
	}
	return n, nil
}

// Cursor marks a position in a task's newest-first history.
type Cursor struct {
	CompletedOn date.Date
	Seq         int64
}

// ListBefore returns up to limit completions of a task, newest first,
// strictly older than after (or from the newest when after is nil).
func (r *CompletionRepo) ListBefore(ctx context.Context, taskID string, after *Cursor, limit int) ([]Completion, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if after == nil {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+completionColumns+`
			FROM task_completions
			WHERE task_id = ?
			ORDER BY completed_on DESC, seq DESC
			LIMIT ?
		`, taskID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+completionColumns+`
			FROM task_completions
			WHERE task_id = ?
				AND (completed_on < ? OR (completed_on = ? AND seq < ?))
			ORDER BY completed_on DESC, seq DESC
			LIMIT ?
		`, taskID, after.CompletedOn, after.CompletedOn, after.Seq, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("completion list: %w", err)
	}
	return collectCompletions(rows)
}

// ListPage returns one offset page of a task's newest-first history.
func (r *CompletionRepo) ListPage(ctx context.Context, taskID string, limit, offset int) ([]Completion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+completionColumns+`
		FROM task_completions
		WHERE task_id = ?
		ORDER BY completed_on DESC, seq DESC
		LIMIT ? OFFSET ?
	`, taskID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("completion page: %w", err)
	}
	return collectCompletions(rows)
}

func scanCompletion(row scanner) (*Completion, error) {
	var (
		c     Completion
		notes sql.NullString
		days  sql.NullInt64
	)
	if err := row.Scan(&c.Seq, &c.ID, &c.TaskID, &c.CompletedOn, &notes, &days, &c.CreatedAt); err != nil {
		return nil, err
	}
	if notes.Valid {
		v := notes.String
		c.Notes = &v
	}
	if days.Valid {
		v := int(days.Int64)
		c.DaysSincePrevious = &v
	}
	return &c, nil
}

func collectCompletions(rows *sql.Rows) ([]Completion, error) {
	defer rows.Close()

	out := []Completion{}
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("completion scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completion rows: %w", err)
	}
	return out, nil
}
