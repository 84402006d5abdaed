package input

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap binds terminal keys to buttons and host actions.
type KeyMap struct {
	Right  key.Binding
	Left   key.Binding
	Up     key.Binding
	Down   key.Binding
	A      key.Binding
	B      key.Binding
	Select key.Binding
	Start  key.Binding
	Pause  key.Binding
	Help   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns arrow keys, z/x for A/B and backspace/enter for
// select/start.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "right")),
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "left")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
		A:      key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "A")),
		B:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "B")),
		Select: key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "select")),
		Start:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "start")),
		Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Button returns the button bound to keyName, if any.
func (k KeyMap) Button(keyName string) (Button, bool) {
	for _, e := range []struct {
		binding key.Binding
		button  Button
	}{
		{k.Right, Right}, {k.Left, Left}, {k.Up, Up}, {k.Down, Down},
		{k.A, A}, {k.B, B}, {k.Select, Select}, {k.Start, Start},
	} {
		for _, bound := range e.binding.Keys() {
			if bound == keyName {
				return e.button, true
			}
		}
	}
	return 0, false
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.A, k.B, k.Start, k.Pause, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.A, k.B, k.Select, k.Start},
		{k.Pause, k.Help, k.Quit},
	}
}
