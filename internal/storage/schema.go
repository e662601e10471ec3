package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			frequency_days INTEGER NOT NULL CHECK (frequency_days >= 1),

			next_due_date TEXT NOT NULL,
			last_completed_date TEXT,
			last_completion_notes TEXT,

			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		// Append-only: the engine never issues UPDATE or DELETE against this table.
		`CREATE TABLE IF NOT EXISTS task_completions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			task_id TEXT NOT NULL,
			completed_on TEXT NOT NULL,
			notes TEXT,
			days_since_previous INTEGER,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(task_id) REFERENCES tasks(id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tasks_name ON tasks(name);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_next_due_date ON tasks(next_due_date);`,
		`CREATE INDEX IF NOT EXISTS idx_task_completions_task_id_completed_on ON task_completions(task_id, completed_on, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
