package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Navigation
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Home    key.Binding
	End     key.Binding

	// Actions
	Quit         key.Binding
	Help         key.Binding
	Escape       key.Binding
	Filter       key.Binding
	ServerSearch key.Binding
	MorePosts    key.Binding
	Refresh      key.Binding
	Delete       key.Binding
	ShareLinked  key.Binding
	ShareFB      key.Binding
	Increase     key.Binding
	Decrease     key.Binding
	AddToCart    key.Binding
	ClearCart    key.Binding
	Logout       key.Binding
	Reload       key.Binding

	// Confirmations
	Confirm key.Binding
	Deny    key.Binding
}

// Keys is the active key map
var Keys = DefaultKeyMap()

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		// Navigation
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab", "l", "right"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "h", "left"),
			key.WithHelp("S-tab", "prev tab"),
		),
		Home: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),

		// Actions
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		ServerSearch: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "search posts"),
		),
		MorePosts: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "more results"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete"),
		),
		ShareLinked: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "share to LinkedIn"),
		),
		ShareFB: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "share to Facebook"),
		),
		Increase: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "increase"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "decrease"),
		),
		AddToCart: key.NewBinding(
			key.WithKeys("enter", "a"),
			key.WithHelp("enter", "add to cart"),
		),
		ClearCart: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "empty cart"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log in/out"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r", "enter"),
			key.WithHelp("r", "reload"),
		),

		// Confirmations
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "yes"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "no"),
		),
	}
}

// ShortHelp returns the footer bindings
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Up, k.Down, k.Filter, k.Refresh, k.Delete, k.Increase, k.Decrease, k.Quit}
}

// FullHelp returns every binding, grouped
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Home, k.End, k.NextTab, k.PrevTab},
		{k.Filter, k.ServerSearch, k.MorePosts, k.Refresh, k.Delete, k.Increase, k.Decrease},
		{k.ShareLinked, k.ShareFB, k.AddToCart, k.ClearCart, k.Logout, k.Help, k.Quit},
	}
}
