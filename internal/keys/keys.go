package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Message actions
	ToggleRead key.Binding
	ToggleStar key.Binding
	Archive    key.Binding
	Trash      key.Binding

	// Threading
	ToggleThread key.Binding

	// Pagination
	LoadMore key.Binding

	// Accounts
	NextAccount   key.Binding
	Reconnect     key.Binding
	AddAccount    key.Binding
	RemoveAccount key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open message"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		ToggleRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "toggle read"),
		),
		ToggleStar: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle star"),
		),
		Archive: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "archive"),
		),
		Trash: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "trash"),
		),
		ToggleThread: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "collapse thread"),
		),
		LoadMore: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "load more"),
		),
		NextAccount: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next account"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reconnect"),
		),
		AddAccount: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "add account"),
		),
		RemoveAccount: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "remove account"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Search, k.Help, k.Refresh, k.LoadMore},
		{k.ToggleRead, k.ToggleStar, k.Archive, k.Trash, k.ToggleThread},
		{k.NextAccount, k.Reconnect, k.AddAccount, k.RemoveAccount},
	}
}
