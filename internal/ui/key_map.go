package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	generate key.Binding
	history  key.Binding
	yes      key.Binding
	no       key.Binding
	restart  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		generate: key.NewBinding(key.WithKeys("g", "enter"), key.WithHelp("g", "generate")),
		history:  key.NewBinding(key.WithKeys("h", "esc"), key.WithHelp("h", "history")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "start")),
		no:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		restart:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "again")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.generate},
		{k.history, k.yes, k.no},
		{k.restart, k.quit},
	}
}
