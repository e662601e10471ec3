package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"homekeep/internal/date"
	"homekeep/internal/engine"
	"homekeep/internal/storage"
	"homekeep/internal/ui"
)

const historyLimit = 10

type boardModel struct {
	ctx  context.Context
	svc  *engine.Service
	keys KeyMap

	width  int
	height int

	today date.Date
	tasks []storage.Task

	selected    int
	showHistory bool
	historyFor  string
	history     []storage.Completion

	lastLog string
	loading bool
	err     error
}

type loadedMsg struct {
	today date.Date
	tasks []storage.Task
	err   error
}

type completedMsg struct {
	id  string
	res *engine.CompleteResult
	err error
}

type historyMsg struct {
	id    string
	items []storage.Completion
	err   error
}

func newBoardModel(ctx context.Context, svc *engine.Service) boardModel {
	return boardModel{
		ctx:     ctx,
		svc:     svc,
		keys:    DefaultKeyMap(),
		loading: true,
		lastLog: "Loading…",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m boardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.svc.ListTasks(m.ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		return loadedMsg{today: m.svc.Today(), tasks: tasks}
	}
}

func (m boardModel) completeCmd(id string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.Complete(m.ctx, id, engine.CompleteInput{})
		return completedMsg{id: id, res: res, err: err}
	}
}

func (m boardModel) historyCmd(id string) tea.Cmd {
	return func() tea.Msg {
		seq, err := m.svc.History(m.ctx, id)
		if err != nil {
			return historyMsg{id: id, err: err}
		}
		var items []storage.Completion
		for c, err := range seq {
			if err != nil {
				return historyMsg{id: id, err: err}
			}
			items = append(items, c)
			if len(items) == historyLimit {
				break
			}
		}
		return historyMsg{id: id, items: items}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case DBChangedMsg:
		return m, m.loadCmd()
	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.today = msg.today
		m.tasks = msg.tasks
		m.clampSelection()
		m.lastLog = fmt.Sprintf("Refreshed at %s.", time.Now().Format("15:04:05"))
		if m.showHistory && m.historyFor != "" {
			return m, m.historyCmd(m.historyFor)
		}
		return m, nil
	case completedMsg:
		if msg.err != nil {
			m.lastLog = "Complete failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = fmt.Sprintf("Completed %s: next due %s", msg.res.Task.Name, msg.res.Task.NextDueDate)
		return m, m.loadCmd()
	case historyMsg:
		if msg.id != m.historyFor {
			return m, nil
		}
		if msg.err != nil {
			m.lastLog = "History failed: " + msg.err.Error()
			return m, nil
		}
		m.history = msg.items
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reload):
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd()
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
			return m, m.followHistory()
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.tasks)-1 {
				m.selected++
			}
			return m, m.followHistory()
		case key.Matches(msg, m.keys.History):
			t := m.current()
			if t == nil {
				return m, nil
			}
			m.showHistory = !m.showHistory
			if !m.showHistory {
				m.historyFor = ""
				m.history = nil
				return m, nil
			}
			m.historyFor = t.ID
			return m, m.historyCmd(t.ID)
		case key.Matches(msg, m.keys.Complete):
			t := m.current()
			if t == nil {
				m.lastLog = "Nothing selected."
				return m, nil
			}
			m.lastLog = fmt.Sprintf("Completing %s…", t.Name)
			return m, m.completeCmd(t.ID)
		}
	}
	return m, nil
}

// followHistory keeps an open history panel on the selected task.
func (m *boardModel) followHistory() tea.Cmd {
	if !m.showHistory {
		return nil
	}
	t := m.current()
	if t == nil || t.ID == m.historyFor {
		return nil
	}
	m.historyFor = t.ID
	m.history = nil
	return m.historyCmd(t.ID)
}

func (m *boardModel) clampSelection() {
	if m.selected >= len(m.tasks) {
		m.selected = len(m.tasks) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m boardModel) current() *storage.Task {
	if m.selected < 0 || m.selected >= len(m.tasks) {
		return nil
	}
	return &m.tasks[m.selected]
}

func (m boardModel) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	main := m.renderMain()
	footer := m.renderFooter()

	// Simple 2-column layout.
	leftW := 26
	if m.width > 0 {
		maxLeft := m.width / 3
		if maxLeft < leftW {
			leftW = maxLeft
		}
		if leftW < 18 {
			leftW = 18
		}
	}

	linesLeft := strings.Split(sidebar, "\n")
	linesRight := strings.Split(main, "\n")
	rows := max(len(linesLeft), len(linesRight))

	var body strings.Builder
	for i := 0; i < rows; i++ {
		l := ""
		r := ""
		if i < len(linesLeft) {
			l = linesLeft[i]
		}
		if i < len(linesRight) {
			r = linesRight[i]
		}
		body.WriteString(padRight(l, leftW))
		body.WriteString("  ")
		body.WriteString(r)
		body.WriteString("\n")
	}

	return header + "\n" + body.String() + footer
}

func (m boardModel) summary() engine.StatusSummary {
	var s engine.StatusSummary
	for _, t := range m.tasks {
		switch engine.ComputeStatus(t, m.today) {
		case engine.StatusOverdue:
			s.Overdue++
		case engine.StatusDueToday:
			s.DueToday++
		default:
			s.Upcoming++
		}
	}
	return s
}

func (m boardModel) renderHeader() string {
	if m.loading && m.today.IsZero() {
		return "homekeep: loading…"
	}
	s := m.summary()
	return fmt.Sprintf("%s | today %s | %s %d · %s %d · %s %d",
		ui.Title.Render("homekeep"), m.today,
		ui.StatusText(string(engine.StatusOverdue)), s.Overdue,
		ui.StatusText(string(engine.StatusDueToday)), s.DueToday,
		ui.StatusText(string(engine.StatusUpcoming)), s.Upcoming,
	)
}

func (m boardModel) renderSidebar() string {
	lines := []string{"Keys"}
	lines = append(lines, m.keys.helpLines()...)
	return strings.Join(lines, "\n")
}

func (m boardModel) renderMain() string {
	if m.loading && len(m.tasks) == 0 {
		return "Loading…"
	}
	out := []string{ui.H2.Render("Tasks")}
	if len(m.tasks) == 0 {
		out = append(out, "(no tasks yet; add one with `hk add`)")
		return strings.Join(out, "\n")
	}
	for i, t := range m.tasks {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		status := engine.ComputeStatus(t, m.today)
		line := fmt.Sprintf("%s%s %-28s %s  %s (%s)",
			cursor, ui.StatusIcon(string(status)), ui.Truncate(t.Name, 28),
			ui.StatusText(string(status)), t.NextDueDate, ui.DueIn(engine.DaysUntilDue(t, m.today)))
		out = append(out, line)
	}

	if m.showHistory {
		out = append(out, "", ui.H2.Render(ui.IconScroll+" History"))
		if len(m.history) == 0 {
			out = append(out, ui.Muted.Render("(never completed)"))
		}
		for _, c := range m.history {
			gap := "first"
			if c.DaysSincePrevious != nil {
				gap = fmt.Sprintf("+%dd", *c.DaysSincePrevious)
			}
			note := ""
			if c.Notes != nil {
				note = "  " + *c.Notes
			}
			out = append(out, fmt.Sprintf("- %s %s%s", c.CompletedOn, ui.Muted.Render(gap), note))
		}
	}
	return strings.Join(out, "\n")
}

func (m boardModel) renderFooter() string {
	return "\n" + m.lastLog
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
