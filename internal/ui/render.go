package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/markup"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/screen"
	"github.com/five82/murmur/internal/state"
)

// postActions is what every post-listing screen offers.
type postActions interface {
	ToggleLike(postID string) error
	Delete(postID string) error
	Edit(postID, content string) error
	Notice() string
	ClearNotice()
}

var (
	_ postActions = (*screen.Feed)(nil)
	_ postActions = (*screen.Likes)(nil)
	_ postActions = (*screen.Profile)(nil)
	_ postActions = (*screen.UserProfile)(nil)
	_ postActions = detailActions{}
)

// detailActions adapts the single-post screen, whose actions need no id.
type detailActions struct {
	*screen.PostDetail
}

func (d detailActions) ToggleLike(string) error       { return d.PostDetail.ToggleLike() }
func (d detailActions) Delete(string) error           { return d.PostDetail.Delete() }
func (d detailActions) Edit(_ string, c string) error { return d.PostDetail.Edit(c) }

// actions returns the active screen, or nil when it does not exist.
func (m Model) actions() postActions {
	switch m.view {
	case ViewFeed:
		if m.feed != nil {
			return m.feed
		}
	case ViewLikes:
		if m.likes != nil {
			return m.likes
		}
	case ViewProfile:
		if m.profile != nil {
			return m.profile
		}
	case ViewUser:
		if m.user != nil {
			return m.user
		}
	case ViewPost:
		if m.detail != nil {
			return detailActions{m.detail}
		}
	}
	return nil
}

// visiblePosts returns the post list of the active screen.
func (m Model) visiblePosts() state.ListView[api.Post] {
	switch m.view {
	case ViewFeed:
		return m.feed.Posts()
	case ViewLikes:
		if m.likes != nil {
			return m.likes.Posts()
		}
	case ViewProfile:
		if m.profile == nil {
			break
		}
		if m.tab == screen.TabLikes {
			return m.profile.Likes()
		}
		return m.profile.Posts()
	case ViewUser:
		if m.user != nil {
			return m.user.Posts()
		}
	}
	return state.ListView[api.Post]{}
}

func (m Model) showingComments() bool {
	return m.view == ViewProfile && m.tab == screen.TabComments && m.profile != nil
}

// selectedPost returns the post the selection points at. On the comments tab
// that is the comment's post.
func (m Model) selectedPost() (api.Post, bool) {
	switch {
	case m.view == ViewPost:
		if m.detail == nil {
			return api.Post{}, false
		}
		v := m.detail.Post()
		return v.Post, v.Found
	case m.showingComments():
		items := m.profile.Comments().Items
		if m.selected < 0 || m.selected >= len(items) {
			return api.Post{}, false
		}
		return items[m.selected].Post, true
	}
	items := m.visiblePosts().Items
	if m.selected < 0 || m.selected >= len(items) {
		return api.Post{}, false
	}
	return items[m.selected], true
}

func (m Model) itemCount() int {
	switch {
	case m.view == ViewPost:
		if m.detail == nil {
			return 0
		}
		return len(m.detail.Comments().Items)
	case m.showingComments():
		return len(m.profile.Comments().Items)
	}
	return len(m.visiblePosts().Items)
}

func (m *Model) moveSelection(delta int) {
	m.selected += delta
	m.clampSelection()
}

func (m *Model) clampSelection() {
	n := m.itemCount()
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// renderMain renders header, active screen and footer.
func (m Model) renderMain() string {
	header := m.renderHeader()
	body := m.renderBody()
	footer := m.renderFooter()

	body = lipgloss.NewStyle().
		Height(bodyHeight(m.height)).
		MaxHeight(bodyHeight(m.height)).
		PaddingLeft(1).
		Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	left := []string{
		bg.Render("murmur", styles.Logo),
		bg.Render(m.view.String(), styles.Text),
	}
	if m.view == ViewProfile {
		left = append(left, bg.Render(m.tab.String(), styles.AccentText))
	}

	who := "anonymous"
	if user, ok := m.identity(); ok {
		who = "@" + user.Username
	}
	right := []string{bg.Render(who, styles.AccentText)}
	if m.width >= LayoutCompactWidth {
		right = append(right, bg.Render(m.theme.Name, styles.FaintText))
	}

	l := bg.Join(left, " · ")
	r := bg.Join(right, " · ")
	gap := m.width - lipgloss.Width(l) - lipgloss.Width(r) - 2
	if gap < 1 {
		gap = 1
	}
	return bg.FillLine(" "+l+bg.Render(strings.Repeat(" ", gap), styles.Text)+r, m.width)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	var first string
	switch {
	case m.prompt.active():
		first = m.prompt.input.View()
	case m.notice() != "":
		first = styles.WarningText.Render(m.notice())
	default:
		first = styles.FaintText.Render(m.hints())
	}

	help := m.keys.ShortHelp()
	parts := make([]string, 0, len(help))
	for _, b := range help {
		parts = append(parts, bg.Render(b.Help().Key, styles.WarningText)+bg.Render(" "+b.Help().Desc, styles.MutedText))
	}
	second := bg.FillLine(" "+bg.Join(parts, "  "), m.width)
	return lipgloss.JoinVertical(lipgloss.Left, " "+first, second)
}

// notice returns the message to show: the session status, else the active
// screen's last mutation failure.
func (m Model) notice() string {
	if m.status != "" {
		return m.status
	}
	if a := m.actions(); a != nil {
		return a.Notice()
	}
	return ""
}

func (m Model) hints() string {
	switch m.view {
	case ViewPost:
		return "l like · c comment · e edit · D delete · esc back"
	case ViewProfile:
		return "1 posts · 2 comments · 3 likes · enter open · l like · b bio"
	default:
		if !m.signedIn() {
			return "enter open · i log in · R register · @ find user"
		}
		return "enter open · l like · n new post · p profile · @ find user"
	}
}

func (m Model) renderBody() string {
	switch m.view {
	case ViewPost:
		return m.renderDetail()
	case ViewProfile:
		return m.renderProfile()
	case ViewUser:
		return m.renderUser()
	}
	return m.renderPostList(m.visiblePosts(), bodyHeight(m.height))
}

func (m Model) renderPostList(v state.ListView[api.Post], height int) string {
	if msg, ok := m.listStatus(v.Status, v.Err, len(v.Items), "No posts yet."); ok {
		return msg
	}
	blocks := make([]string, 0, len(v.Items))
	for i, p := range v.Items {
		blocks = append(blocks, m.renderPost(p, i == m.selected))
	}
	return window(blocks, m.selected, height)
}

// listStatus returns the placeholder for a list that has nothing to show.
func (m Model) listStatus(status state.Status, err error, n int, empty string) (string, bool) {
	styles := m.theme.Styles()
	switch {
	case status == state.StatusFailed && n == 0:
		return styles.DangerText.Render("Could not load: " + api.Message(err)), true
	case (status == state.StatusLoading || status == state.StatusIdle) && n == 0:
		return styles.MutedText.Render("Loading..."), true
	case n == 0:
		return styles.MutedText.Render(empty), true
	}
	return "", false
}

func (m Model) renderPost(p api.Post, selected bool) string {
	styles := m.theme.Styles()

	head := styles.AccentText.Bold(true).Render("@" + p.Author.Username)
	if when := relativeTime(p.ParsedCreatedAt(), time.Now()); when != "" && m.width >= LayoutCompactWidth {
		head += styles.FaintText.Render(" · " + when)
	}

	heart, heartStyle := "♡", styles.MutedText
	if p.IsLiked {
		heart, heartStyle = "♥", styles.Liked
	}
	footer := heartStyle.Render(fmt.Sprintf("%s %d", heart, p.LikesCount)) +
		styles.MutedText.Render(fmt.Sprintf("   %d comments", p.CommentsCount))
	if m.deps.Coord != nil {
		if m.deps.Coord.InFlight(optimistic.ActionEdit, p.ID) {
			footer += styles.Pending.Render("   saving...")
		} else if m.deps.Coord.InFlight(optimistic.ActionLike, p.ID) {
			footer += styles.Pending.Render("   ...")
		}
	}

	body := markup.Render(p.Content, styles.Text)
	return m.block(lipgloss.JoinVertical(lipgloss.Left, head, body, footer), selected)
}

func (m Model) renderComment(c api.Comment, selected bool) string {
	styles := m.theme.Styles()
	head := styles.AccentText.Render("@" + c.Author.Username)
	if optimistic.IsProvisional(c.ID) {
		head += styles.Pending.Render(" · sending...")
	} else if when := relativeTime(c.ParsedCreatedAt(), time.Now()); when != "" {
		head += styles.FaintText.Render(" · " + when)
	}
	return m.block(lipgloss.JoinVertical(lipgloss.Left, head, markup.Render(c.Content, styles.Text)), selected)
}

func (m Model) renderEnrichedComment(c api.EnrichedComment, selected bool) string {
	styles := m.theme.Styles()
	on := styles.FaintText.Render("on @" + c.Post.Author.Username + ": " + excerpt(markup.Plain(c.Post.Content), 40))
	heart, heartStyle := "♡", styles.MutedText
	if c.Post.IsLiked {
		heart, heartStyle = "♥", styles.Liked
	}
	stats := heartStyle.Render(fmt.Sprintf("%s %d", heart, c.Post.LikesCount)) +
		styles.MutedText.Render(fmt.Sprintf("   %d comments", c.Post.CommentsCount))
	return m.block(lipgloss.JoinVertical(lipgloss.Left, on, markup.Render(c.Content, styles.Text), stats), selected)
}

// block frames content with a left rule that marks the selection.
func (m Model) block(content string, selected bool) string {
	color := m.theme.Background
	if selected {
		color = m.theme.BorderFocus
	}
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color(color)).
		PaddingLeft(1).
		MarginBottom(1).
		Width(contentWidth(m.width)).
		Render(content)
}

func (m Model) renderCounters(v state.CountersView) string {
	styles := m.theme.Styles()
	if !v.Loaded {
		if v.Status == state.StatusFailed {
			return styles.FaintText.Render("Counters unavailable")
		}
		return styles.FaintText.Render("...")
	}
	return styles.Text.Render(fmt.Sprintf("%d posts · %d comments · %d likes", v.Stats.Posts, v.Stats.Comments, v.Stats.Likes))
}

func (m Model) renderProfile() string {
	if m.profile == nil {
		return ""
	}
	styles := m.theme.Styles()
	var head []string
	if user, ok := m.identity(); ok {
		head = append(head, styles.Text.Bold(true).Render("@"+user.Username))
		if user.Bio != "" {
			head = append(head, markup.Render(user.Bio, styles.MutedText))
		}
	}
	head = append(head, m.renderCounters(m.profile.Stats()), m.renderTabs(), "")
	top := lipgloss.JoinVertical(lipgloss.Left, head...)
	rest := bodyHeight(m.height) - lipgloss.Height(top)

	if m.showingComments() {
		v := m.profile.Comments()
		if msg, ok := m.listStatus(v.Status, v.Err, len(v.Items), "No comments yet."); ok {
			return lipgloss.JoinVertical(lipgloss.Left, top, msg)
		}
		blocks := make([]string, 0, len(v.Items))
		for i, c := range v.Items {
			blocks = append(blocks, m.renderEnrichedComment(c, i == m.selected))
		}
		return lipgloss.JoinVertical(lipgloss.Left, top, window(blocks, m.selected, rest))
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, m.renderPostList(m.visiblePosts(), rest))
}

func (m Model) renderTabs() string {
	styles := m.theme.Styles()
	tabs := []screen.Tab{screen.TabPosts, screen.TabComments, screen.TabLikes}
	parts := make([]string, 0, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%d %s", i+1, t)
		if t == m.tab {
			parts = append(parts, styles.Selected.Padding(0, 1).Render(label))
		} else {
			parts = append(parts, styles.MutedText.Padding(0, 1).Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderUser() string {
	if m.user == nil {
		return ""
	}
	styles := m.theme.Styles()
	var head []string
	if user, ok := m.user.User(); ok {
		head = append(head, styles.Text.Bold(true).Render("@"+user.Username))
		if user.Bio != "" {
			head = append(head, markup.Render(user.Bio, styles.MutedText))
		}
		head = append(head, m.renderCounters(m.user.Stats()))
	}
	head = append(head, "")
	top := lipgloss.JoinVertical(lipgloss.Left, head...)
	return lipgloss.JoinVertical(lipgloss.Left, top, m.renderPostList(m.user.Posts(), bodyHeight(m.height)-lipgloss.Height(top)))
}

func (m Model) renderDetail() string {
	if m.detail == nil {
		return ""
	}
	styles := m.theme.Styles()
	pv := m.detail.Post()
	var top string
	switch {
	case pv.Found:
		top = m.renderPost(pv.Post, false)
	case pv.Status == state.StatusFailed:
		top = styles.DangerText.Render("Could not load post: " + api.Message(pv.Err))
	case pv.Status == state.StatusReady:
		top = styles.MutedText.Render("This post is no longer available.")
	default:
		top = styles.MutedText.Render("Loading...")
	}
	top = lipgloss.JoinVertical(lipgloss.Left, top, styles.AccentText.Bold(true).Render("Comments"))

	cv := m.detail.Comments()
	if msg, ok := m.listStatus(cv.Status, cv.Err, len(cv.Items), "No comments yet."); ok {
		return lipgloss.JoinVertical(lipgloss.Left, top, msg)
	}
	blocks := make([]string, 0, len(cv.Items))
	for i, c := range cv.Items {
		blocks = append(blocks, m.renderComment(c, i == m.selected))
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, window(blocks, m.selected, bodyHeight(m.height)-lipgloss.Height(top)))
}

// window returns as many blocks as fit in height, keeping selected visible.
func window(blocks []string, selected, height int) string {
	if len(blocks) == 0 || height <= 0 {
		return ""
	}
	if selected < 0 || selected >= len(blocks) {
		selected = 0
	}
	start, end := selected, selected+1
	used := lipgloss.Height(blocks[selected])
	for end < len(blocks) && used+lipgloss.Height(blocks[end]) <= height {
		used += lipgloss.Height(blocks[end])
		end++
	}
	for start > 0 && used+lipgloss.Height(blocks[start-1]) <= height {
		start--
		used += lipgloss.Height(blocks[start])
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks[start:end]...)
}

func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case t.Year() == now.Year():
		return t.Format("Jan 2")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
