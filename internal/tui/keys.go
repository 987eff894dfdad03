package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Search    key.Binding
	Add       key.Binding
	Edit      key.Binding
	Increment key.Binding
	Decrement key.Binding
	Sort      key.Binding
	Refresh   key.Binding
	About     key.Binding
	Quit      key.Binding

	// Overlay keys.
	Submit    key.Binding
	Close     key.Binding
	Clear     key.Binding
	NextField key.Binding
	PrevField key.Binding
	ForceQuit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Increment: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "one more")),
		Decrement: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "one less")),
		Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		About:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "about")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),

		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Close:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Clear:     key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "clear")),
		NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// ShortHelp and FullHelp make keyMap a help.KeyMap for the list view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Add, k.Edit, k.Increment, k.Decrement, k.Sort, k.About, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Search, k.Add, k.Edit},
		{k.Increment, k.Decrement, k.Sort},
		{k.Refresh, k.About, k.Quit},
	}
}
