package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/api/apitest"
	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/state"
	"github.com/five82/murmur/internal/validate"
)

type fakeViewer struct {
	user *api.User
}

func (v fakeViewer) IsAuthenticated() bool { return v.user != nil }

func (v fakeViewer) UserID() string {
	if v.user == nil {
		return ""
	}
	return v.user.ID
}

func (v fakeViewer) Identity() (api.User, bool) {
	if v.user == nil {
		return api.User{}, false
	}
	return *v.user, true
}

var viewer = fakeViewer{user: &api.User{ID: "u1", Username: "ada"}}

type fixture struct {
	store  *state.Store
	gw     *apitest.Gateway
	coord  *Coordinator
	events []Event
	mu     sync.Mutex
}

func newFixture(t *testing.T, v Viewer) *fixture {
	t.Helper()
	f := &fixture{store: state.NewStore(), gw: &apitest.Gateway{}}
	f.coord = New(f.store, f.gw, v, Options{
		Observe: func(ev Event) {
			f.mu.Lock()
			f.events = append(f.events, ev)
			f.mu.Unlock()
		},
		NewID: func() string { return "tmp-1" },
		Now:   func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	return f
}

func (f *fixture) phases() []Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Phase, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Phase)
	}
	return out
}

func load(t *testing.T, l *state.PostList, posts ...api.Post) {
	t.Helper()
	require.True(t, l.Finish(l.BeginLoad(), posts, nil))
}

func mustFind(t *testing.T, find func(string) (api.Post, bool), id string) api.Post {
	t.Helper()
	p, ok := find(id)
	require.True(t, ok, "post %s missing", id)
	return p
}

func TestToggleLike_RoundTripRestoresOriginal(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	load(t, feed, api.Post{ID: "p1", LikesCount: 5})
	defer f.coord.Register(feed)()

	ctx := context.Background()
	require.NoError(t, f.coord.ToggleLike(ctx, mustFind(t, feed.Find, "p1"), LikeScope{}))
	p := mustFind(t, feed.Find, "p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 6, p.LikesCount)

	require.NoError(t, f.coord.ToggleLike(ctx, p, LikeScope{}))
	p = mustFind(t, feed.Find, "p1")
	assert.False(t, p.IsLiked)
	assert.Equal(t, 5, p.LikesCount)
	assert.Equal(t, []Phase{PhaseApplied, PhaseConfirmed, PhaseApplied, PhaseConfirmed}, f.phases())
}

func TestToggleLike_ProjectsFeedAndEmbeddedCopies(t *testing.T) {
	f := newFixture(t, viewer)
	post := api.Post{ID: "p1", LikesCount: 2}
	feed := f.store.NewPostList("feed", state.Policy{})
	comments := f.store.NewEnrichedCommentList("comments")
	load(t, feed, post)
	require.True(t, comments.Finish(comments.BeginLoad(), []api.EnrichedComment{
		{Comment: api.Comment{ID: "c1"}, Post: post},
	}, nil))
	defer f.coord.Register(feed, comments)()

	f.gw.On("ToggleLike", mock.Anything, "p1", false).Return(nil).Run(func(mock.Arguments) {
		// Both copies already show the change while the request is pending.
		a := mustFind(t, feed.Find, "p1")
		b := mustFind(t, comments.Find, "p1")
		assert.Equal(t, 3, a.LikesCount)
		assert.Equal(t, a.LikesCount, b.LikesCount)
		assert.Equal(t, a.IsLiked, b.IsLiked)
	})
	require.NoError(t, f.coord.ToggleLike(context.Background(), post, LikeScope{}))
	f.gw.AssertNumberOfCalls(t, "ToggleLike", 1)
}

func TestToggleLike_RollbackOnFailure(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	detail := f.store.NewPostDetail("detail")
	post := api.Post{ID: "p1", LikesCount: 5, IsLiked: false}
	load(t, feed, post)
	require.True(t, detail.Finish(detail.BeginLoad(), post, nil))
	defer f.coord.Register(feed, detail)()

	cause := &api.Error{Status: 500, Message: "boom"}
	f.gw.On("ToggleLike", mock.Anything, "p1", false).Return(cause)

	err := f.coord.ToggleLike(context.Background(), post, LikeScope{})
	var rb *RollbackError
	require.ErrorAs(t, err, &rb)
	assert.Equal(t, ActionLike, rb.Action)
	assert.Equal(t, "p1", rb.PostID)
	assert.ErrorIs(t, err, cause)

	p := mustFind(t, feed.Find, "p1")
	assert.Equal(t, 5, p.LikesCount)
	assert.False(t, p.IsLiked)
	assert.Equal(t, 5, detail.View().Post.LikesCount)
	assert.False(t, detail.View().Post.IsLiked)
	assert.Equal(t, []Phase{PhaseApplied, PhaseRolledBack}, f.phases())
}

func TestToggleLike_LikesListRemovesFeedKeeps(t *testing.T) {
	f := newFixture(t, viewer)
	post := api.Post{ID: "p1", LikesCount: 1, IsLiked: true}
	feed := f.store.NewPostList("feed", state.Policy{})
	likes := f.store.NewPostList("likes", state.Policy{RemoveWhenUnliked: true})
	load(t, feed, post)
	load(t, likes, post)
	defer f.coord.Register(feed)()
	unregLikes := f.coord.Register(likes)

	require.NoError(t, f.coord.ToggleLike(context.Background(), post, LikeScope{}))
	_, inLikes := likes.Find("p1")
	assert.False(t, inLikes)
	p := mustFind(t, feed.Find, "p1")
	assert.False(t, p.IsLiked)
	assert.Equal(t, 0, p.LikesCount)

	// Without a liked-only list registered the unlike patches in place only.
	unregLikes()
	load(t, feed, post)
	require.NoError(t, f.coord.ToggleLike(context.Background(), post, LikeScope{}))
	p = mustFind(t, feed.Find, "p1")
	assert.False(t, p.IsLiked)
}

func TestToggleLike_LikesListRestoredOnFailure(t *testing.T) {
	f := newFixture(t, viewer)
	likes := f.store.NewPostList("likes", state.Policy{RemoveWhenUnliked: true})
	load(t, likes, api.Post{ID: "p0", IsLiked: true}, api.Post{ID: "p1", IsLiked: true, LikesCount: 4})
	defer f.coord.Register(likes)()
	f.gw.On("ToggleLike", mock.Anything, "p1", true).Return(errors.New("offline"))

	post := mustFind(t, likes.Find, "p1")
	require.Error(t, f.coord.ToggleLike(context.Background(), post, LikeScope{}))
	items := likes.View().Items
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[1].ID)
	assert.Equal(t, 4, items[1].LikesCount)
}

func TestToggleLike_OwnLikesCounter(t *testing.T) {
	f := newFixture(t, viewer)
	counters := f.store.NewCounters("stats", "u1")
	require.True(t, counters.Finish(counters.BeginLoad(), api.Stats{Likes: 2}, nil))
	defer f.coord.Register(counters)()

	post := api.Post{ID: "p1", IsLiked: true, LikesCount: 1}
	require.NoError(t, f.coord.ToggleLike(context.Background(), post, LikeScope{OwnLikes: true}))
	assert.Equal(t, 1, counters.View().Stats.Likes)

	require.NoError(t, f.coord.ToggleLike(context.Background(), api.Post{ID: "p2"}, LikeScope{}))
	assert.Equal(t, 1, counters.View().Stats.Likes)
}

func TestToggleLike_StaleCallerValueChangesNothing(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	counters := f.store.NewCounters("stats", "u1")
	load(t, feed, api.Post{ID: "p1", LikesCount: 5})
	require.True(t, counters.Finish(counters.BeginLoad(), api.Stats{Likes: 3}, nil))
	defer f.coord.Register(feed, counters)()

	// Both presses read the post before either was applied.
	stale := mustFind(t, feed.Find, "p1")
	require.NoError(t, f.coord.ToggleLike(context.Background(), stale, LikeScope{OwnLikes: true}))
	require.NoError(t, f.coord.ToggleLike(context.Background(), stale, LikeScope{OwnLikes: true}))

	p := mustFind(t, feed.Find, "p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 6, p.LikesCount)
	assert.Equal(t, 4, counters.View().Stats.Likes)
	assert.Equal(t, 1, f.gw.Count("ToggleLike"))
	assert.Equal(t, []Phase{PhaseApplied, PhaseConfirmed}, f.phases())
}

func TestToggleLike_RequiresViewer(t *testing.T) {
	f := newFixture(t, fakeViewer{})
	err := f.coord.ToggleLike(context.Background(), api.Post{ID: "p1"}, LikeScope{})
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, f.gw.Methods())
}

func TestToggleLike_InFlightGuard(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	load(t, feed, api.Post{ID: "p1", LikesCount: 5})
	defer f.coord.Register(feed)()

	started := make(chan struct{})
	release := make(chan struct{})
	f.gw.On("ToggleLike", mock.Anything, "p1", false).Return(nil).Run(func(mock.Arguments) {
		close(started)
		<-release
	})

	done := make(chan error, 1)
	go func() {
		done <- f.coord.ToggleLike(context.Background(), api.Post{ID: "p1", LikesCount: 5}, LikeScope{})
	}()
	<-started
	assert.True(t, f.coord.InFlight(ActionLike, "p1"))

	err := f.coord.ToggleLike(context.Background(), mustFind(t, feed.Find, "p1"), LikeScope{})
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, 6, mustFind(t, feed.Find, "p1").LikesCount)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.coord.InFlight(ActionLike, "p1"))
	f.gw.AssertNumberOfCalls(t, "ToggleLike", 1)
}

func TestDeletePost_DecrementsCounterWhateverIsLoaded(t *testing.T) {
	f := newFixture(t, viewer)
	counters := f.store.NewCounters("stats", "u1")
	require.True(t, counters.Finish(counters.BeginLoad(), api.Stats{Posts: 3, Likes: 7}, nil))
	// The likes tab list exists but was never fetched.
	likes := f.store.NewPostList("likes", state.Policy{RemoveWhenUnliked: true})
	defer f.coord.Register(counters, likes)()

	post := api.Post{ID: "p1", AuthorID: "u1"}
	require.NoError(t, f.coord.DeletePost(context.Background(), post))
	assert.Equal(t, api.Stats{Posts: 2, Likes: 7}, counters.View().Stats)
}

func TestDeletePost_RemovesAndRestores(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	counters := f.store.NewCounters("stats", "u1")
	load(t, feed, api.Post{ID: "p0"}, api.Post{ID: "p1", AuthorID: "u1"}, api.Post{ID: "p2"})
	require.True(t, counters.Finish(counters.BeginLoad(), api.Stats{Posts: 1}, nil))
	defer f.coord.Register(feed, counters)()
	f.gw.On("DeletePost", mock.Anything, "p1").Return(errors.New("nope")).Run(func(mock.Arguments) {
		assert.Len(t, feed.View().Items, 2)
		assert.Equal(t, 0, counters.View().Stats.Posts)
	})

	err := f.coord.DeletePost(context.Background(), mustFind(t, feed.Find, "p1"))
	require.Error(t, err)
	ids := []string{}
	for _, p := range feed.View().Items {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p0", "p1", "p2"}, ids)
	assert.Equal(t, 1, counters.View().Stats.Posts)
}

func TestDeletePost_AuthorOnly(t *testing.T) {
	f := newFixture(t, viewer)
	err := f.coord.DeletePost(context.Background(), api.Post{ID: "p1", AuthorID: "u2"})
	assert.ErrorIs(t, err, session.ErrNotAuthor)

	anon := newFixture(t, fakeViewer{})
	err = anon.coord.DeletePost(context.Background(), api.Post{ID: "p1", AuthorID: "u1"})
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestEditPost(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	load(t, feed, api.Post{ID: "p1", AuthorID: "u1", Content: "old", LikesCount: 2})
	defer f.coord.Register(feed)()

	f.gw.On("UpdatePost", mock.Anything, "p1", "new").Return(nil).Once()
	f.gw.On("UpdatePost", mock.Anything, "p1", "newer").Return(errors.New("fail")).Once()
	post := mustFind(t, feed.Find, "p1")
	require.NoError(t, f.coord.EditPost(context.Background(), post, "  new  "))
	p := mustFind(t, feed.Find, "p1")
	assert.Equal(t, "new", p.Content)
	assert.Equal(t, 2, p.LikesCount)

	require.Error(t, f.coord.EditPost(context.Background(), p, "newer"))
	assert.Equal(t, "new", mustFind(t, feed.Find, "p1").Content)
	f.gw.AssertExpectations(t)
}

func TestEditPost_BlankContentRejectedBeforeNetwork(t *testing.T) {
	f := newFixture(t, viewer)
	err := f.coord.EditPost(context.Background(), api.Post{ID: "p1", AuthorID: "u1"}, "   ")
	_, ok := validate.AsError(err)
	assert.True(t, ok)
	assert.Empty(t, f.gw.Methods())
	assert.Empty(t, f.phases())
}

func TestAddComment_PrependsAndCounts(t *testing.T) {
	f := newFixture(t, viewer)
	detail := f.store.NewPostDetail("detail")
	comments := f.store.NewCommentList("comments", "p1")
	counters := f.store.NewCounters("stats", "u1")
	require.True(t, detail.Finish(detail.BeginLoad(), api.Post{ID: "p1", CommentsCount: 3}, nil))
	require.True(t, comments.Finish(comments.BeginLoad(), []api.Comment{{ID: "c0", PostID: "p1"}}, nil))
	require.True(t, counters.Finish(counters.BeginLoad(), api.Stats{Comments: 10}, nil))
	defer f.coord.Register(detail, comments, counters)()

	stored := &api.Comment{ID: "c9", PostID: "p1", Content: "hello", CreatedAt: "2024-01-02T03:04:06Z"}
	f.gw.On("AddComment", mock.Anything, "p1", "hello").Return(stored, nil).Run(func(mock.Arguments) {
		items := comments.View().Items
		assert.Equal(t, "tmp-1", items[0].ID)
		assert.True(t, IsProvisional(items[0].ID))
		assert.Equal(t, "ada", items[0].Author.Username)
		assert.Equal(t, 4, detail.View().Post.CommentsCount)
	})

	got, err := f.coord.AddComment(context.Background(), "p1", " hello ")
	require.NoError(t, err)
	assert.Equal(t, "c9", got.ID)
	assert.Equal(t, "ada", got.Author.Username)

	items := comments.View().Items
	require.Len(t, items, 2)
	assert.Equal(t, "c9", items[0].ID)
	assert.False(t, IsProvisional(items[0].ID))
	assert.Equal(t, "hello", items[0].Content)
	assert.Equal(t, 4, detail.View().Post.CommentsCount)
	assert.Equal(t, 11, counters.View().Stats.Comments)
}

func TestAddComment_RollbackOnFailure(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	comments := f.store.NewCommentList("comments", "p1")
	load(t, feed, api.Post{ID: "p1", CommentsCount: 3})
	require.True(t, comments.Finish(comments.BeginLoad(), nil, nil))
	defer f.coord.Register(feed, comments)()
	f.gw.On("AddComment", mock.Anything, "p1", "hello").Return(nil, &api.Error{Status: 500, Message: "boom"})

	_, err := f.coord.AddComment(context.Background(), "p1", "hello")
	var rb *RollbackError
	require.ErrorAs(t, err, &rb)
	assert.Equal(t, ActionComment, rb.Action)
	assert.Empty(t, comments.View().Items)
	assert.Equal(t, 3, mustFind(t, feed.Find, "p1").CommentsCount)
}

func TestAddComment_Preconditions(t *testing.T) {
	anon := newFixture(t, fakeViewer{})
	_, err := anon.coord.AddComment(context.Background(), "p1", "hi")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	f := newFixture(t, viewer)
	_, err = f.coord.AddComment(context.Background(), "p1", "\n")
	_, ok := validate.AsError(err)
	assert.True(t, ok)
	assert.Empty(t, f.gw.Methods())
}

func TestRegister_UnregisteredTargetsUntouched(t *testing.T) {
	f := newFixture(t, viewer)
	feed := f.store.NewPostList("feed", state.Policy{})
	load(t, feed, api.Post{ID: "p1"})
	unregister := f.coord.Register(feed)
	unregister()
	unregister()

	require.NoError(t, f.coord.ToggleLike(context.Background(), api.Post{ID: "p1"}, LikeScope{}))
	assert.Equal(t, 0, mustFind(t, feed.Find, "p1").LikesCount)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "rolled back", PhaseRolledBack.String())
	assert.Equal(t, "idle", PhaseIdle.String())
}
