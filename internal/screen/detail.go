package screen

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/state"
)

// PostDetail shows one post with its comments.
type PostDetail struct {
	base
	postID   string
	post     *state.PostDetail
	comments *state.CommentList
}

// NewPostDetail creates the detail screen for postID.
func NewPostDetail(ctx context.Context, deps Deps, postID string) *PostDetail {
	d := &PostDetail{base: newBase(ctx, deps, "post"), postID: postID}
	d.post = deps.Store.NewPostDetail("post." + postID)
	d.comments = deps.Store.NewCommentList("post."+postID+".comments", postID)
	d.track(d.post, d.comments)
	return d
}

// Load fetches the post and its comments concurrently.
func (d *PostDetail) Load() error {
	var g errgroup.Group
	g.Go(func() error {
		return load(d.ctx, d.post, func(ctx context.Context) (api.Post, error) {
			p, err := d.deps.Gateway.FetchPostDetails(ctx, d.postID, d.viewerID())
			if err != nil {
				return api.Post{}, err
			}
			if p == nil {
				return api.Post{}, errors.New("post not found")
			}
			return *p, nil
		})
	})
	g.Go(func() error {
		return load(d.ctx, d.comments, func(ctx context.Context) ([]api.Comment, error) {
			return d.deps.Gateway.FetchComments(ctx, d.postID)
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load post %s: %w", d.postID, err)
	}
	return nil
}

// Post returns the post.
func (d *PostDetail) Post() state.DetailView {
	return d.post.View()
}

// Comments returns the comments, newest first.
func (d *PostDetail) Comments() state.ListView[api.Comment] {
	return d.comments.View()
}

// Publishing reports whether a comment is being sent.
func (d *PostDetail) Publishing() bool {
	return d.deps.Coord.InFlight(optimistic.ActionComment, d.postID)
}

// CanComment reports whether the comment input should accept text.
func (d *PostDetail) CanComment() bool {
	return d.deps.Viewer != nil && d.deps.Viewer.IsAuthenticated() && !d.Publishing()
}

// AddComment publishes a comment on the post.
func (d *PostDetail) AddComment(content string) (api.Comment, error) {
	c, err := d.deps.Coord.AddComment(d.ctx, d.postID, content)
	return c, d.report(err)
}

func (d *PostDetail) current() (api.Post, bool) {
	v := d.post.View()
	return v.Post, v.Found
}

// ToggleLike likes or unlikes the post.
func (d *PostDetail) ToggleLike() error {
	p, ok := d.current()
	return d.toggleLike(p, ok, optimistic.LikeScope{})
}

// Delete removes the post.
func (d *PostDetail) Delete() error {
	p, ok := d.current()
	return d.deletePost(p, ok)
}

// Edit replaces the post's content.
func (d *PostDetail) Edit(content string) error {
	p, ok := d.current()
	return d.editPost(p, ok, content)
}
