package screen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/state"
)

// Tab is a section of the own-profile screen.
type Tab int

const (
	TabPosts Tab = iota
	TabComments
	TabLikes
)

func (t Tab) String() string {
	switch t {
	case TabComments:
		return "comments"
	case TabLikes:
		return "likes"
	default:
		return "posts"
	}
}

// ParseTab maps a tab name back to a Tab. Unknown names are TabPosts.
func ParseTab(name string) Tab {
	switch name {
	case "comments":
		return TabComments
	case "likes":
		return TabLikes
	default:
		return TabPosts
	}
}

// Profile is the viewer's own profile: counters plus posts, comments and
// likes tabs. Tabs load the first time they are selected.
type Profile struct {
	base
	userID   string
	stats    *state.Counters
	posts    *state.PostList
	comments *state.EnrichedCommentList
	likes    *state.PostList

	tabMu sync.Mutex
	tab   Tab
}

// NewProfile creates the own-profile screen. It fails when nobody is signed in.
func NewProfile(ctx context.Context, deps Deps) (*Profile, error) {
	if deps.Viewer == nil || !deps.Viewer.IsAuthenticated() {
		return nil, session.ErrNotAuthenticated
	}
	p := &Profile{base: newBase(ctx, deps, "profile"), userID: deps.Viewer.UserID()}
	p.stats = deps.Store.NewCounters("profile.stats", p.userID)
	p.posts = deps.Store.NewPostList("profile.posts", state.Policy{})
	p.comments = deps.Store.NewEnrichedCommentList("profile.comments")
	p.likes = deps.Store.NewPostList("profile.likes", state.Policy{RemoveWhenUnliked: true})
	p.track(p.stats, p.posts, p.comments, p.likes)
	return p, nil
}

// Open loads the counters and the active tab concurrently. A counters failure
// is recorded on the counters only.
func (p *Profile) Open() error {
	var g errgroup.Group
	g.Go(func() error {
		if err := p.loadStats(); err != nil {
			p.logger.Warn("profile stats fetch failed", "user_id", p.userID, "err", err)
		}
		return nil
	})
	tab := p.Tab()
	g.Go(func() error { return p.loadTab(tab) })
	return g.Wait()
}

// Tab returns the active tab.
func (p *Profile) Tab() Tab {
	p.tabMu.Lock()
	defer p.tabMu.Unlock()
	return p.tab
}

// Preselect sets the tab Open will load, without fetching anything.
func (p *Profile) Preselect(tab Tab) {
	p.tabMu.Lock()
	p.tab = tab
	p.tabMu.Unlock()
}

// SelectTab switches tabs, fetching the tab's list if it has never loaded.
func (p *Profile) SelectTab(tab Tab) error {
	p.tabMu.Lock()
	p.tab = tab
	p.tabMu.Unlock()
	if p.tabStatus(tab) != state.StatusIdle {
		return nil
	}
	return p.loadTab(tab)
}

// Refresh refetches the counters and the active tab.
func (p *Profile) Refresh() error {
	return p.Open()
}

func (p *Profile) tabStatus(tab Tab) state.Status {
	switch tab {
	case TabComments:
		return p.comments.View().Status
	case TabLikes:
		return p.likes.View().Status
	default:
		return p.posts.View().Status
	}
}

func (p *Profile) loadStats() error {
	return load(p.ctx, p.stats, func(ctx context.Context) (api.Stats, error) {
		return p.deps.Gateway.FetchProfileStats(ctx, p.userID)
	})
}

func (p *Profile) loadTab(tab Tab) error {
	var err error
	switch tab {
	case TabComments:
		err = load(p.ctx, p.comments, func(ctx context.Context) ([]api.EnrichedComment, error) {
			return p.deps.Gateway.FetchUserComments(ctx, p.userID, p.userID)
		})
	case TabLikes:
		err = load(p.ctx, p.likes, func(ctx context.Context) ([]api.Post, error) {
			return p.deps.Gateway.FetchLikedPosts(ctx, p.userID, p.userID)
		})
	default:
		err = load(p.ctx, p.posts, func(ctx context.Context) ([]api.Post, error) {
			return p.deps.Gateway.FetchUserPosts(ctx, p.userID, p.userID)
		})
	}
	if err != nil {
		return fmt.Errorf("load %s tab: %w", tab, err)
	}
	return nil
}

// Stats returns the viewer's counters.
func (p *Profile) Stats() state.CountersView {
	return p.stats.View()
}

// Posts returns the posts tab.
func (p *Profile) Posts() state.ListView[api.Post] {
	return p.posts.View()
}

// Comments returns the comments tab.
func (p *Profile) Comments() state.ListView[api.EnrichedComment] {
	return p.comments.View()
}

// Likes returns the likes tab.
func (p *Profile) Likes() state.ListView[api.Post] {
	return p.likes.View()
}

func (p *Profile) find(postID string) (api.Post, bool) {
	switch p.Tab() {
	case TabComments:
		return findIn(postID, p.comments.Find, p.posts.Find, p.likes.Find)
	case TabLikes:
		return findIn(postID, p.likes.Find, p.posts.Find, p.comments.Find)
	default:
		return findIn(postID, p.posts.Find, p.likes.Find, p.comments.Find)
	}
}

// ToggleLike likes or unlikes postID. The viewer's like counter moves with it.
func (p *Profile) ToggleLike(postID string) error {
	post, ok := p.find(postID)
	return p.toggleLike(post, ok, optimistic.LikeScope{OwnLikes: true})
}

// Delete removes one of the viewer's posts.
func (p *Profile) Delete(postID string) error {
	post, ok := p.find(postID)
	return p.deletePost(post, ok)
}

// Edit replaces the content of one of the viewer's posts.
func (p *Profile) Edit(postID, content string) error {
	post, ok := p.find(postID)
	return p.editPost(post, ok, content)
}

// UserProfile shows another user's counters and posts, looked up by username.
type UserProfile struct {
	base
	username string
	posts    *state.PostList

	mu    sync.Mutex
	user  *api.User
	stats *state.Counters
}

// NewUserProfile creates the profile screen for username.
func NewUserProfile(ctx context.Context, deps Deps, username string) *UserProfile {
	u := &UserProfile{
		base:     newBase(ctx, deps, "user"),
		username: strings.TrimPrefix(strings.TrimSpace(username), "@"),
	}
	u.posts = deps.Store.NewPostList("user.posts", state.Policy{})
	u.track(u.posts)
	return u
}

// Load resolves the username, then fetches counters and posts concurrently.
func (u *UserProfile) Load() error {
	user, err := u.resolve()
	if err != nil {
		return err
	}
	stats := u.counters(user.ID)

	var g errgroup.Group
	g.Go(func() error {
		err := load(u.ctx, stats, func(ctx context.Context) (api.Stats, error) {
			return u.deps.Gateway.FetchProfileStats(ctx, user.ID)
		})
		if err != nil {
			u.logger.Warn("profile stats fetch failed", "user_id", user.ID, "err", err)
		}
		return nil
	})
	g.Go(func() error {
		return load(u.ctx, u.posts, func(ctx context.Context) ([]api.Post, error) {
			return u.deps.Gateway.FetchUserPosts(ctx, user.ID, u.viewerID())
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load %s: %w", u.username, err)
	}
	return nil
}

func (u *UserProfile) resolve() (api.User, error) {
	u.mu.Lock()
	if u.user != nil {
		user := *u.user
		u.mu.Unlock()
		return user, nil
	}
	u.mu.Unlock()

	if u.username == "" {
		return api.User{}, u.failLookup(errors.New("empty username"))
	}
	found, err := u.deps.Gateway.FindUserByUsername(u.ctx, u.username)
	if err == nil && found == nil {
		err = &api.Error{Status: http.StatusNotFound, Message: "user not found"}
	}
	if err != nil {
		return api.User{}, u.failLookup(err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.user == nil {
		cp := *found
		u.user = &cp
	}
	return *u.user, nil
}

// failLookup records a failed username lookup as the posts list's fetch error.
func (u *UserProfile) failLookup(err error) error {
	u.posts.Finish(u.posts.BeginLoad(), nil, err)
	return fmt.Errorf("find user %s: %w", u.username, err)
}

func (u *UserProfile) counters(userID string) *state.Counters {
	u.mu.Lock()
	if u.stats != nil {
		defer u.mu.Unlock()
		return u.stats
	}
	u.stats = u.deps.Store.NewCounters("user.stats", userID)
	stats := u.stats
	u.mu.Unlock()
	u.track(stats)
	return stats
}

// User returns the resolved user.
func (u *UserProfile) User() (api.User, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.user == nil {
		return api.User{}, false
	}
	return *u.user, true
}

// Stats returns the user's counters.
func (u *UserProfile) Stats() state.CountersView {
	u.mu.Lock()
	stats := u.stats
	u.mu.Unlock()
	if stats == nil {
		return state.CountersView{Name: "user.stats"}
	}
	return stats.View()
}

// Posts returns the user's posts.
func (u *UserProfile) Posts() state.ListView[api.Post] {
	return u.posts.View()
}

// ToggleLike likes or unlikes postID.
func (u *UserProfile) ToggleLike(postID string) error {
	p, ok := u.posts.Find(postID)
	return u.toggleLike(p, ok, optimistic.LikeScope{})
}

// Delete removes one of the viewer's posts.
func (u *UserProfile) Delete(postID string) error {
	p, ok := u.posts.Find(postID)
	return u.deletePost(p, ok)
}

// Edit replaces the content of one of the viewer's posts.
func (u *UserProfile) Edit(postID, content string) error {
	p, ok := u.posts.Find(postID)
	return u.editPost(p, ok, content)
}
