package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the dashboard.
type keyMap struct {
	submit  key.Binding
	clear   key.Binding
	refetch key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run command")),
		clear:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear input")),
		refetch: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refetch")),
		quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "shut down")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.submit, k.refetch, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.submit, k.clear},
		{k.refetch, k.quit},
	}
}
