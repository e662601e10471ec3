package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// DBChangedMsg is sent when another session writes to the database.
type DBChangedMsg struct{}

// StartWatcher watches the SQLite file (and its WAL) for writes and sends
// DBChangedMsg, debounced.
func StartWatcher(dbPath string, program *tea.Program) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: SQLite recreates the -wal file on checkpoint.
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	watched := map[string]bool{
		filepath.Clean(dbPath):          true,
		filepath.Clean(dbPath + "-wal"): true,
	}
	done := make(chan struct{})

	go func() {
		var debounceTimer *time.Timer

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !watched[filepath.Clean(event.Name)] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(200*time.Millisecond, func() {
					program.Send(DBChangedMsg{})
				})

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}

			case <-done:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
		}
	}()

	cleanup := func() {
		close(done)
		watcher.Close()
	}
	return cleanup, nil
}
