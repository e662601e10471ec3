package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultDBPath returns the default homekeep DB location.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".homekeep", "homekeep.db"), nil
}

// ResolveDBPath expands a leading ~, falls back to DefaultDBPath when path is
// empty, and makes sure the parent directory exists.
func ResolveDBPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		path = filepath.Join(homeDir, path[1:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create db dir: %w", err)
	}
	return path, nil
}

// dsn enables WAL so readers never wait on a completion in flight, waits on
// locks instead of failing at once, and starts every transaction IMMEDIATE so
// the write lock is taken before the ledger reads prior state.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// OpenSQLite opens (and creates if missing) the SQLite database at the provided path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Open opens the database and brings its schema up to date.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
