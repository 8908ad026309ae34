package tui

import "github.com/charmbracelet/bubbles/key"

// lobbyKeyMap defines the key bindings for the room view.
type lobbyKeyMap struct {
	Up         key.Binding
	Down       key.Binding
	AddPlayer  key.Binding
	StartGame  key.Binding
	KickPlayer key.Binding
	CloseRoom  key.Binding
	Reconnect  key.Binding
	Back       key.Binding
	Quit       key.Binding
}

func newLobbyKeyMap() lobbyKeyMap {
	return lobbyKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		AddPlayer: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add local player"),
		),
		StartGame: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start game"),
		),
		KickPlayer: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove player"),
		),
		CloseRoom: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "close/leave room"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k lobbyKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.AddPlayer, k.StartGame, k.KickPlayer, k.CloseRoom, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k lobbyKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.AddPlayer, k.StartGame},
		{k.KickPlayer, k.CloseRoom, k.Reconnect, k.Back, k.Quit},
	}
}
