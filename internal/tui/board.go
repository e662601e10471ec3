package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"homekeep/internal/engine"
)

// RunBoard opens the dashboard. When dbPath is set the board reloads
// whenever another process writes to the database.
func RunBoard(ctx context.Context, svc *engine.Service, dbPath string, out io.Writer) error {
	m := newBoardModel(ctx, svc)
	p := tea.NewProgram(m, tea.WithOutput(out), tea.WithContext(ctx))

	if dbPath != "" {
		// Live refresh is best effort; r still reloads by hand.
		stop, err := StartWatcher(dbPath, p)
		if err == nil {
			defer stop()
		}
	}

	_, err := p.Run()
	return err
}
