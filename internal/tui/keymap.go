package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the monitor bindings.
type keyMap struct {
	quit         key.Binding
	refresh      key.Binding
	toggleHelp   key.Binding
	drain        key.Binding
	forceDrain   key.Binding
	toggleOnline key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
}

// newKeyMap constructs the default monitor bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		drain:        key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "drain")),
		forceDrain:   key.NewBinding(key.WithKeys("D", "shift+d"), key.WithHelp("D", "drain now (skip backoff)")),
		toggleOnline: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "toggle online")),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "record up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "record down")),
	}
}

// ShortHelp returns the footer bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.drain, k.toggleOnline, k.refresh, k.toggleHelp, k.quit}
}

// FullHelp returns every binding grouped by purpose.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.drain, k.forceDrain, k.toggleOnline},
		{k.moveUp, k.moveDown},
		{k.refresh, k.toggleHelp, k.quit},
	}
}
