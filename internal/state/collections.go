package state

import (
	"github.com/five82/murmur/internal/api"
)

// Policy tunes how a post list reacts to mutations.
type Policy struct {
	// RemoveWhenUnliked drops a post from the list when the viewer unlikes it.
	RemoveWhenUnliked bool
}

// PostList is an ordered list of posts such as the feed, a user's posts, or
// liked posts.
type PostList struct {
	list[api.Post]
	policy Policy
}

// NewPostList creates an empty post list.
func (s *Store) NewPostList(name string, policy Policy) *PostList {
	return &PostList{
		list: newList(s, name,
			func(p *api.Post) string { return p.ID },
			func(p *api.Post) *api.Post { return p }),
		policy: policy,
	}
}

// Finish applies the result of the fetch identified by t. It returns false
// when the result was stale or the list closed.
func (l *PostList) Finish(t Ticket, posts []api.Post, err error) bool {
	return l.finish(t, posts, err)
}

// View returns a copy of the list.
func (l *PostList) View() ListView[api.Post] {
	return l.view()
}

// Find returns the list's copy of postID.
func (l *PostList) Find(postID string) (api.Post, bool) {
	return l.findPost(postID)
}

// Policy returns the list's mutation policy.
func (l *PostList) Policy() Policy {
	return l.policy
}

func (l *PostList) project(op Op) func() {
	if l.closed || op.PostID == "" {
		return nil
	}
	if op.Remove || (op.Unliked && l.policy.RemoveWhenUnliked) {
		return l.removeWhere(func(p *api.Post) bool { return p.ID == op.PostID })
	}
	return l.patchPost(op.PostID, op.Patch)
}

// EnrichedCommentList holds comments that each embed a copy of their post,
// as on a profile's comments tab.
type EnrichedCommentList struct {
	list[api.EnrichedComment]
}

// NewEnrichedCommentList creates an empty enriched comment list.
func (s *Store) NewEnrichedCommentList(name string) *EnrichedCommentList {
	return &EnrichedCommentList{
		list: newList(s, name,
			func(c *api.EnrichedComment) string { return c.ID },
			func(c *api.EnrichedComment) *api.Post { return &c.Post }),
	}
}

// Finish applies the result of the fetch identified by t.
func (l *EnrichedCommentList) Finish(t Ticket, comments []api.EnrichedComment, err error) bool {
	return l.finish(t, comments, err)
}

// View returns a copy of the list.
func (l *EnrichedCommentList) View() ListView[api.EnrichedComment] {
	return l.view()
}

// Find returns the first embedded copy of postID.
func (l *EnrichedCommentList) Find(postID string) (api.Post, bool) {
	return l.findPost(postID)
}

func (l *EnrichedCommentList) project(op Op) func() {
	if l.closed || op.PostID == "" {
		return nil
	}
	if op.Remove {
		return l.removeWhere(func(c *api.EnrichedComment) bool { return c.Post.ID == op.PostID })
	}
	return l.patchPost(op.PostID, op.Patch)
}

// CommentList holds the comments of one post.
type CommentList struct {
	list[api.Comment]
	postID string
}

// NewCommentList creates an empty comment list bound to postID.
func (s *Store) NewCommentList(name, postID string) *CommentList {
	return &CommentList{
		list: newList(s, name,
			func(c *api.Comment) string { return c.ID },
			nil),
		postID: postID,
	}
}

// PostID returns the post the list belongs to.
func (l *CommentList) PostID() string {
	return l.postID
}

// Finish applies the result of the fetch identified by t.
func (l *CommentList) Finish(t Ticket, comments []api.Comment, err error) bool {
	return l.finish(t, comments, err)
}

// View returns a copy of the list.
func (l *CommentList) View() ListView[api.Comment] {
	return l.view()
}

func (l *CommentList) project(op Op) func() {
	if l.closed {
		return nil
	}
	var undo func()
	if c := op.AddComment; c != nil && c.PostID == l.postID {
		undo = l.prepend(*c)
	}
	if sw := op.SwapComment; sw != nil && sw.New.PostID == l.postID {
		l.replaceByKey(sw.OldID, sw.New)
	}
	return undo
}

// PostDetail holds a single post opened on its own screen.
type PostDetail struct {
	list[api.Post]
}

// DetailView is a copy of a PostDetail. Found is false before the first
// successful load and after the post has been deleted.
type DetailView struct {
	Name   string
	Status Status
	Err    error
	Post   api.Post
	Found  bool
}

// NewPostDetail creates an empty post detail.
func (s *Store) NewPostDetail(name string) *PostDetail {
	return &PostDetail{
		list: newList(s, name,
			func(p *api.Post) string { return p.ID },
			func(p *api.Post) *api.Post { return p }),
	}
}

// Finish applies the result of the fetch identified by t.
func (d *PostDetail) Finish(t Ticket, post api.Post, err error) bool {
	if err != nil {
		return d.finish(t, nil, err)
	}
	return d.finish(t, []api.Post{post}, nil)
}

// View returns a copy of the detail.
func (d *PostDetail) View() DetailView {
	v := d.view()
	out := DetailView{Name: v.Name, Status: v.Status, Err: v.Err}
	if len(v.Items) > 0 {
		out.Post = v.Items[0]
		out.Found = true
	}
	return out
}

func (d *PostDetail) project(op Op) func() {
	if d.closed || op.PostID == "" {
		return nil
	}
	if op.Remove {
		return d.removeWhere(func(p *api.Post) bool { return p.ID == op.PostID })
	}
	return d.patchPost(op.PostID, op.Patch)
}

// Counters holds the aggregate counts of one user.
type Counters struct {
	list[api.Stats]
	userID string
}

// CountersView is a copy of a Counters set. Loaded is false until the first
// successful fetch.
type CountersView struct {
	Name   string
	Status Status
	Err    error
	Stats  api.Stats
	Loaded bool
}

// NewCounters creates an empty counter set owned by userID.
func (s *Store) NewCounters(name, userID string) *Counters {
	return &Counters{
		list:   newList[api.Stats](s, name, nil, nil),
		userID: userID,
	}
}

// UserID returns the owner of the counters.
func (c *Counters) UserID() string {
	return c.userID
}

// Finish applies the result of the fetch identified by t.
func (c *Counters) Finish(t Ticket, stats api.Stats, err error) bool {
	if err != nil {
		return c.finish(t, nil, err)
	}
	return c.finish(t, []api.Stats{stats}, nil)
}

// View returns a copy of the counters.
func (c *Counters) View() CountersView {
	v := c.view()
	out := CountersView{Name: v.Name, Status: v.Status, Err: v.Err}
	if len(v.Items) > 0 {
		out.Stats = v.Items[0]
		out.Loaded = true
	}
	return out
}

func (c *Counters) project(op Op) func() {
	if c.closed || c.userID == "" || len(c.items) == 0 {
		return nil
	}
	d := op.Delta
	st := &c.items[0]
	var applied api.Stats
	if d.PostsOf == c.userID {
		applied.Posts = adjust(&st.Posts, d.Posts)
	}
	if d.CommentsOf == c.userID {
		applied.Comments = adjust(&st.Comments, d.Comments)
	}
	if d.LikesOf == c.userID {
		applied.Likes = adjust(&st.Likes, d.Likes)
	}
	if applied == (api.Stats{}) {
		return nil
	}
	gen := c.generation
	return func() {
		if c.closed || c.generation != gen || len(c.items) == 0 {
			return
		}
		st := &c.items[0]
		adjust(&st.Posts, -applied.Posts)
		adjust(&st.Comments, -applied.Comments)
		adjust(&st.Likes, -applied.Likes)
	}
}

// adjust moves *v by delta without going below zero and returns the change
// actually made.
func adjust(v *int, delta int) int {
	next := max(*v+delta, 0)
	change := next - *v
	*v = next
	return change
}
