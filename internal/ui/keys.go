package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	ToggleLogs key.Binding
	Escape     key.Binding
	Confirm    key.Binding

	// Login gate
	BrowserLogin key.Binding
	PasteToken   key.Binding

	// Selector
	Up        key.Binding
	Down      key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Tab       key.Binding
	CycleMode key.Binding
	Complete  key.Binding
	Dashboard key.Binding
	TimeWarp  key.Binding
	Logout    key.Binding

	// Time warp
	StretchUp   key.Binding
	StretchDown key.Binding
	ShiftUp     key.Binding
	ShiftDown   key.Binding
	Collapse    key.Binding
	Apply       key.Binding
	Filtered    key.Binding
	Reset       key.Binding

	// Log pane
	HalfPageUp   key.Binding
	HalfPageDown key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Toggle log pane"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),

		BrowserLogin: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Log in with browser"),
		),
		PasteToken: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Paste token"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "Switch decks/tags"),
		),
		CycleMode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Cycle mode"),
		),
		Complete: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "Complete tag"),
		),
		Dashboard: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Open dashboard"),
		),
		TimeWarp: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "Time warp"),
		),
		Logout: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "Log out"),
		),

		StretchUp: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "Stretch +10%"),
		),
		StretchDown: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "Stretch -10%"),
		),
		ShiftUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑", "Shift +1 day"),
		),
		ShiftDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓", "Shift -1 day"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Toggle collapse overdues"),
		),
		Apply: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Apply due dates"),
		),
		Filtered: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Build filtered deck"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reset parameters"),
		),

		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.BrowserLogin, k.PasteToken},
		{k.Up, k.Down, k.Top, k.Bottom, k.Tab, k.CycleMode, k.Complete, k.Confirm},
		{k.Dashboard, k.TimeWarp, k.Logout},
		{k.StretchUp, k.StretchDown, k.ShiftUp, k.ShiftDown, k.Collapse, k.Apply, k.Filtered, k.Reset},
		{k.ToggleLogs, k.HalfPageDown, k.HalfPageUp},
		{k.CycleTheme, k.Help, k.Escape, k.Quit},
	}
}
