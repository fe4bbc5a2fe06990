package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Refresh    key.Binding

	// View switching
	ViewFeed    key.Binding
	ViewProfile key.Binding
	ViewLikes   key.Binding
	FindUser    key.Binding
	Open        key.Binding

	// Profile tabs
	TabPosts    key.Binding
	TabComments key.Binding
	TabLikes    key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Post actions
	Like    key.Binding
	Delete  key.Binding
	Edit    key.Binding
	Comment key.Binding
	Compose key.Binding

	// Session
	Login    key.Binding
	Register key.Binding
	Logout   key.Binding
	EditBio  key.Binding

	// Input
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		// Global
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),

		// View switching
		ViewFeed: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Feed"),
		),
		ViewProfile: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "My profile"),
		),
		ViewLikes: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Liked posts"),
		),
		FindUser: key.NewBinding(
			key.WithKeys("@"),
			key.WithHelp("@", "Find user"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open post"),
		),

		// Profile tabs
		TabPosts: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Posts tab"),
		),
		TabComments: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Comments tab"),
		),
		TabLikes: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Likes tab"),
		),

		// Navigation
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

		// Post actions
		Like: key.NewBinding(
			key.WithKeys("l", " "),
			key.WithHelp("l/Space", "Like or unlike"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete post"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Edit post"),
		),
		Comment: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Comment"),
		),
		Compose: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New post"),
		),

		// Session
		Login: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "Log in"),
		),
		Register: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Register"),
		),
		Logout: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "Log out"),
		),
		EditBio: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Edit bio"),
		),

		// Input
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
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
		// Navigation
		{k.ViewFeed, k.ViewProfile, k.ViewLikes, k.FindUser, k.Open, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.TabPosts, k.TabComments, k.TabLikes},
		// Posts
		{k.Like, k.Edit, k.Delete, k.Comment, k.Compose, k.Refresh},
		// Session
		{k.Login, k.Register, k.Logout, k.EditBio},
		// General
		{k.CycleTheme, k.Help, k.Quit},
	}
}
