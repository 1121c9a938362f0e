package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the viewer key bindings with built-in help text.
type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding

	ToggleDebug   key.Binding
	ToggleInfo    key.Binding
	ToggleWarning key.Binding
	ToggleError   key.Binding

	AutoScroll key.Binding
	Clear      key.Binding

	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		ToggleDebug: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "debug"),
		),
		ToggleInfo: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "info"),
		),
		ToggleWarning: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "warning"),
		),
		ToggleError: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "error"),
		),
		AutoScroll: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "auto-scroll"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f", " "),
			key.WithHelp("pgdn", "page down"),
		),
		Home: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleDebug, k.ToggleInfo, k.ToggleWarning, k.ToggleError, k.AutoScroll, k.Clear, k.Quit}
}
