package screen

import (
	"context"
	"fmt"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/state"
)

// Feed is the home timeline.
type Feed struct {
	base
	posts *state.PostList
}

// NewFeed creates the feed screen. Call Load to fetch it.
func NewFeed(ctx context.Context, deps Deps) *Feed {
	f := &Feed{base: newBase(ctx, deps, "feed")}
	f.posts = deps.Store.NewPostList("feed", state.Policy{})
	f.track(f.posts)
	return f
}

// Load fetches the feed, replacing what is shown.
func (f *Feed) Load() error {
	err := load(f.ctx, f.posts, func(ctx context.Context) ([]api.Post, error) {
		return f.deps.Gateway.FetchFeed(ctx, f.viewerID())
	})
	if err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	return nil
}

// Posts returns the current feed.
func (f *Feed) Posts() state.ListView[api.Post] {
	return f.posts.View()
}

// ToggleLike likes or unlikes postID.
func (f *Feed) ToggleLike(postID string) error {
	p, ok := f.posts.Find(postID)
	return f.toggleLike(p, ok, optimistic.LikeScope{})
}

// Delete removes one of the viewer's posts.
func (f *Feed) Delete(postID string) error {
	p, ok := f.posts.Find(postID)
	return f.deletePost(p, ok)
}

// Edit replaces the content of one of the viewer's posts.
func (f *Feed) Edit(postID, content string) error {
	p, ok := f.posts.Find(postID)
	return f.editPost(p, ok, content)
}

// Likes lists the posts a user has liked. Unliking a post here removes it.
type Likes struct {
	base
	userID string
	posts  *state.PostList
}

// NewLikes creates the liked-posts screen for userID.
func NewLikes(ctx context.Context, deps Deps, userID string) *Likes {
	l := &Likes{base: newBase(ctx, deps, "likes"), userID: userID}
	l.posts = deps.Store.NewPostList("likes", state.Policy{RemoveWhenUnliked: true})
	l.track(l.posts)
	return l
}

// Load fetches the liked posts.
func (l *Likes) Load() error {
	err := load(l.ctx, l.posts, func(ctx context.Context) ([]api.Post, error) {
		return l.deps.Gateway.FetchLikedPosts(ctx, l.userID, l.viewerID())
	})
	if err != nil {
		return fmt.Errorf("load likes: %w", err)
	}
	return nil
}

// Posts returns the liked posts.
func (l *Likes) Posts() state.ListView[api.Post] {
	return l.posts.View()
}

// ToggleLike likes or unlikes postID.
func (l *Likes) ToggleLike(postID string) error {
	p, ok := l.posts.Find(postID)
	return l.toggleLike(p, ok, optimistic.LikeScope{OwnLikes: l.userID == l.viewerID()})
}

// Delete removes one of the viewer's posts from every screen.
func (l *Likes) Delete(postID string) error {
	p, ok := l.posts.Find(postID)
	return l.deletePost(p, ok)
}

// Edit replaces the content of one of the viewer's posts.
func (l *Likes) Edit(postID, content string) error {
	p, ok := l.posts.Find(postID)
	return l.editPost(p, ok, content)
}
