package ui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/prefs"
	"github.com/five82/murmur/internal/screen"
	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewFeed View = iota
	ViewLikes
	ViewProfile
	ViewUser
	ViewPost
)

func (v View) String() string {
	switch v {
	case ViewLikes:
		return "Liked posts"
	case ViewProfile:
		return "Profile"
	case ViewUser:
		return "User"
	case ViewPost:
		return "Post"
	default:
		return "Home"
	}
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Gateway   api.PostGateway
	Session   *session.Store
	Store     *state.Store
	Coord     *optimistic.Coordinator
	Events    <-chan optimistic.Event
	Logger    *slog.Logger
	ThemeName string
	PrefsPath string
	// ProfileTab is the tab the own profile opens on.
	ProfileTab string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	deps      screen.Deps
	session   *session.Store
	events    <-chan optimistic.Event
	logger    *slog.Logger
	prefsPath string

	// UI state
	keys     keyMap
	theme    Theme
	width    int
	height   int
	ready    bool
	view     View
	back     View
	selected int
	showHelp bool
	tab      screen.Tab

	// Screens
	feed    *screen.Feed
	compose *screen.Compose
	likes   *screen.Likes
	profile *screen.Profile
	user    *screen.UserProfile
	detail  *screen.PostDetail

	// Input line and the last session message
	prompt prompt
	status string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Nightfox"
	}

	deps := screen.Deps{
		Gateway: opts.Gateway,
		Store:   opts.Store,
		Coord:   opts.Coord,
		Logger:  logger,
	}
	if opts.Session != nil {
		deps.Viewer = opts.Session
	}

	m := Model{
		ctx:       ctx,
		deps:      deps,
		session:   opts.Session,
		events:    opts.Events,
		logger:    logger.With("component", "ui"),
		prefsPath: opts.PrefsPath,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(themeName),
		tab:       screen.ParseTab(opts.ProfileTab),
		prompt:    prompt{fields: make(map[promptKind]string)},
	}
	m.resetScreens()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(ViewFeed), waitForEvent(m.events))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.prompt.input.Width = m.width - 4
		return m, nil

	case loadedMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.logger.Debug("screen load failed", "view", msg.view.String(), "err", msg.err)
		}
		m.clampSelection()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.logger.Debug("action failed", "err", msg.err)
		} else if msg.leave && m.view == ViewPost {
			m.goBack()
		}
		m.clampSelection()
		return m, nil

	case sessionMsg:
		return m.handleSession(msg)

	case eventMsg:
		m.clampSelection()
		return m, waitForEvent(m.events)
	}

	if m.prompt.active() {
		var cmd tea.Cmd
		m.prompt.input, cmd = m.prompt.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.prompt.active() {
		return m.handlePromptKey(msg)
	}

	m.status = ""
	if a := m.actions(); a != nil {
		a.ClearNotice()
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs(func(p *prefs.Prefs) { p.Theme = m.theme.Name })

	case key.Matches(msg, m.keys.Escape):
		m.goBack()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadCmd(m.view)

	case key.Matches(msg, m.keys.ViewFeed):
		m.switchTo(ViewFeed)

	case key.Matches(msg, m.keys.ViewProfile):
		return m, m.openProfile()

	case key.Matches(msg, m.keys.ViewLikes):
		return m, m.openLikes()

	case key.Matches(msg, m.keys.FindUser):
		return m, m.openPrompt(promptFindUser, "", "")

	case key.Matches(msg, m.keys.Open):
		if m.view == ViewPost {
			return m, nil
		}
		if post, ok := m.selectedPost(); ok {
			return m, m.openPost(post.ID)
		}

	case key.Matches(msg, m.keys.TabPosts), key.Matches(msg, m.keys.TabComments), key.Matches(msg, m.keys.TabLikes):
		if m.view == ViewProfile {
			return m, m.selectTab(msg)
		}

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = m.itemCount() - 1
		m.clampSelection()

	case key.Matches(msg, m.keys.Like):
		return m, m.postCmd(func(a postActions, id string) error { return a.ToggleLike(id) }, false)

	case key.Matches(msg, m.keys.Delete):
		return m, m.postCmd(func(a postActions, id string) error { return a.Delete(id) }, true)

	case key.Matches(msg, m.keys.Edit):
		if post, ok := m.selectedPost(); ok {
			return m, m.openPrompt(promptEdit, post.ID, post.Content)
		}

	case key.Matches(msg, m.keys.Comment):
		if m.view != ViewPost {
			return m, nil
		}
		if !m.detail.CanComment() {
			m.status = commentBlockedStatus(m.detail.Publishing())
			return m, nil
		}
		return m, m.openPrompt(promptComment, "", "")

	case key.Matches(msg, m.keys.Compose):
		if !m.signedIn() {
			m.status = "Log in to post."
			return m, nil
		}
		return m, m.openPrompt(promptCompose, "", "")

	case key.Matches(msg, m.keys.Login):
		return m, m.openPrompt(promptLoginUser, "", "")

	case key.Matches(msg, m.keys.Register):
		return m, m.openPrompt(promptRegisterUser, "", "")

	case key.Matches(msg, m.keys.Logout):
		return m, m.logoutCmd()

	case key.Matches(msg, m.keys.EditBio):
		user, ok := m.identity()
		if !ok {
			m.status = "Log in to edit your bio."
			return m, nil
		}
		return m, m.openPrompt(promptBio, "", user.Bio)
	}

	return m, nil
}

func commentBlockedStatus(publishing bool) string {
	if publishing {
		return "Publishing comment..."
	}
	return "Log in to comment."
}

// resetScreens closes every screen and starts over on a fresh feed. It runs
// whenever the signed-in identity changes, because fetched lists carry
// per-viewer fields such as is_liked.
func (m *Model) resetScreens() {
	m.closeScreens()
	feed := screen.NewFeed(m.ctx, m.deps)
	logger := m.logger
	m.feed = feed
	m.compose = screen.NewCompose(m.ctx, m.deps, func() {
		if err := feed.Load(); err != nil {
			logger.Warn("feed refresh after post failed", "err", err)
		}
	})
	m.view, m.back, m.selected = ViewFeed, ViewFeed, 0
}

func (m *Model) closeScreens() {
	if m.feed != nil {
		m.feed.Close()
	}
	if m.compose != nil {
		m.compose.Close()
	}
	m.closeLikes()
	m.closeProfile()
	m.closeUser()
	m.closeDetail()
}

func (m *Model) closeLikes() {
	if m.likes != nil {
		m.likes.Close()
		m.likes = nil
	}
}

func (m *Model) closeProfile() {
	if m.profile != nil {
		m.profile.Close()
		m.profile = nil
	}
}

func (m *Model) closeUser() {
	if m.user != nil {
		m.user.Close()
		m.user = nil
	}
}

func (m *Model) closeDetail() {
	if m.detail != nil {
		m.detail.Close()
		m.detail = nil
	}
}

// switchTo changes the active view, remembering where to go back to.
func (m *Model) switchTo(v View) {
	if v == m.view {
		return
	}
	if m.view != ViewPost {
		m.back = m.view
	}
	if m.view == ViewPost && v != ViewPost {
		m.closeDetail()
	}
	m.view = v
	m.selected = 0
}

// goBack leaves the post detail for the screen it was opened from, or
// returns to the feed.
func (m *Model) goBack() {
	switch m.view {
	case ViewPost:
		back := m.back
		if !m.available(back) {
			back = ViewFeed
		}
		m.closeDetail()
		m.view = back
	case ViewFeed:
		return
	default:
		m.view = ViewFeed
	}
	m.selected = 0
}

func (m *Model) available(v View) bool {
	switch v {
	case ViewLikes:
		return m.likes != nil
	case ViewProfile:
		return m.profile != nil
	case ViewUser:
		return m.user != nil
	case ViewPost:
		return m.detail != nil
	default:
		return true
	}
}

func (m *Model) openProfile() tea.Cmd {
	if m.profile == nil {
		p, err := screen.NewProfile(m.ctx, m.deps)
		if err != nil {
			m.status = "Log in to see your profile."
			return nil
		}
		p.Preselect(m.tab)
		m.profile = p
	}
	m.switchTo(ViewProfile)
	return m.loadCmd(ViewProfile)
}

func (m *Model) openLikes() tea.Cmd {
	if !m.signedIn() {
		m.status = "Log in to see your liked posts."
		return nil
	}
	if m.likes == nil {
		m.likes = screen.NewLikes(m.ctx, m.deps, m.deps.Viewer.UserID())
	}
	m.switchTo(ViewLikes)
	return m.loadCmd(ViewLikes)
}

func (m *Model) openUser(username string) tea.Cmd {
	m.closeUser()
	if m.view == ViewUser {
		m.view = ViewFeed
	}
	m.user = screen.NewUserProfile(m.ctx, m.deps, username)
	m.switchTo(ViewUser)
	return m.loadCmd(ViewUser)
}

func (m *Model) openPost(postID string) tea.Cmd {
	m.closeDetail()
	m.detail = screen.NewPostDetail(m.ctx, m.deps, postID)
	m.switchTo(ViewPost)
	return m.loadCmd(ViewPost)
}

func (m *Model) selectTab(msg tea.KeyMsg) tea.Cmd {
	tab := screen.TabPosts
	switch {
	case key.Matches(msg, m.keys.TabComments):
		tab = screen.TabComments
	case key.Matches(msg, m.keys.TabLikes):
		tab = screen.TabLikes
	}
	m.tab = tab
	m.selected = 0
	m.savePrefs(func(p *prefs.Prefs) { p.ProfileTab = tab.String() })
	profile := m.profile
	return func() tea.Msg {
		return loadedMsg{view: ViewProfile, err: profile.SelectTab(tab)}
	}
}

func (m *Model) savePrefs(fn func(*prefs.Prefs)) {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Update(m.prefsPath, fn); err != nil {
		m.logger.Warn("failed to save preferences", "err", err)
	}
}

func (m Model) signedIn() bool {
	return m.deps.Viewer != nil && m.deps.Viewer.IsAuthenticated()
}

func (m Model) identity() (api.User, bool) {
	if m.session == nil {
		return api.User{}, false
	}
	return m.session.Identity()
}

// Messages

type loadedMsg struct {
	view View
	err  error
}

type actionMsg struct {
	err   error
	leave bool
}

type eventMsg optimistic.Event

// Commands

func (m Model) loadCmd(v View) tea.Cmd {
	var load func() error
	switch v {
	case ViewFeed:
		load = m.feed.Load
	case ViewLikes:
		if m.likes == nil {
			return nil
		}
		load = m.likes.Load
	case ViewProfile:
		if m.profile == nil {
			return nil
		}
		load = m.profile.Refresh
	case ViewUser:
		if m.user == nil {
			return nil
		}
		load = m.user.Load
	case ViewPost:
		if m.detail == nil {
			return nil
		}
		load = m.detail.Load
	}
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		return loadedMsg{view: v, err: load()}
	}
}

// postCmd runs fn against the selected post on the active screen.
func (m Model) postCmd(fn func(a postActions, postID string) error, leave bool) tea.Cmd {
	a := m.actions()
	post, ok := m.selectedPost()
	if a == nil || !ok {
		return nil
	}
	return func() tea.Msg {
		return actionMsg{err: fn(a, post.ID), leave: leave}
	}
}

func waitForEvent(ch <-chan optimistic.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	var programOpts []tea.ProgramOption
	programOpts = append(programOpts, tea.WithAltScreen())
	if opts.Context != nil {
		programOpts = append(programOpts, tea.WithContext(opts.Context))
	}
	p := tea.NewProgram(m, programOpts...)
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.closeScreens()
	}
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context != nil && opts.Context.Err() != nil {
		return nil
	}
	return err
}
