package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the board's key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Complete key.Binding
	History  key.Binding
	Reload   key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Complete: key.NewBinding(
			key.WithKeys("c", " "),
			key.WithHelp("c/space", "complete today"),
		),
		History: key.NewBinding(
			key.WithKeys("h", "enter"),
			key.WithHelp("h/enter", "history"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k KeyMap) helpLines() []string {
	bindings := []key.Binding{k.Up, k.Down, k.Complete, k.History, k.Reload, k.Quit}
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, "- "+h.Key+": "+h.Desc)
	}
	return out
}
