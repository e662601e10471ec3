package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// homekeep theme (CLI + TUI).

const (
	IconHome    = "🏠"
	IconSparkle = "✨"
	IconPlus    = "➕"
	IconDone    = "✅"
	IconClock   = "⏰"
	IconInfo    = "ℹ️"
	IconWarn    = "⚠️"
	IconError   = "🧨"
	IconLoop    = "🔁"
	IconScroll  = "📜"
	IconCal     = "📅"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	Panel       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
	PanelTitle  = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(cGold).Background(cPrimary)
)

func Heading(icon string, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// StatusText renders a due status (overdue, due_today, upcoming).
func StatusText(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "overdue":
		return Bad.Render("overdue")
	case "due_today":
		return Warn.Render("due today")
	case "upcoming":
		return Good.Render("upcoming")
	default:
		return Muted.Render(status)
	}
}

func StatusIcon(status string) string {
	switch status {
	case "overdue":
		return IconWarn
	case "due_today":
		return IconClock
	default:
		return IconCal
	}
}

// DueIn describes a day offset relative to today ("in 3 days", "2 days ago").
func DueIn(days int) string {
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days == -1:
		return "yesterday"
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	default:
		return fmt.Sprintf("%d days ago", -days)
	}
}

// Truncate shortens s to width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
