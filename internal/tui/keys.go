package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap defines the switcher's key bindings
type keyMap struct {
	Ports   key.Binding
	FKeys   key.Binding
	Left    key.Binding
	Right   key.Binding
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Refresh key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Ports, k.Select, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Ports, k.FKeys},
		{k.Left, k.Right, k.Up, k.Down, k.Select},
		{k.Refresh, k.Help, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Ports: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9", "0"),
			key.WithHelp("1-9,0", "select port (0=10)"),
		),
		FKeys: key.NewBinding(
			key.WithKeys("f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8", "f9", "f10", "f11", "f12"),
			key.WithHelp("F1-F12", "select port"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "select focused"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// portForKey maps a shortcut key to a port number, 0 if the key is not a
// port shortcut.
func portForKey(k string) int {
	switch k {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return int(k[0] - '0')
	case "0":
		return 10
	case "f1":
		return 1
	case "f2":
		return 2
	case "f3":
		return 3
	case "f4":
		return 4
	case "f5":
		return 5
	case "f6":
		return 6
	case "f7":
		return 7
	case "f8":
		return 8
	case "f9":
		return 9
	case "f10":
		return 10
	case "f11":
		return 11
	case "f12":
		return 12
	}
	return 0
}
