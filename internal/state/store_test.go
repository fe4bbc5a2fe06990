package state

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/murmur/internal/api"
)

func likePatch() *PostPatch {
	return &PostPatch{
		Apply: func(p *api.Post) {
			p.IsLiked = true
			p.LikesCount++
		},
		Revert: func(p *api.Post, before api.Post) {
			p.IsLiked = before.IsLiked
			p.LikesCount = before.LikesCount
		},
	}
}

func unlikePatch() *PostPatch {
	return &PostPatch{
		Apply: func(p *api.Post) {
			p.IsLiked = false
			p.LikesCount = max(p.LikesCount-1, 0)
		},
		Revert: func(p *api.Post, before api.Post) {
			p.IsLiked = before.IsLiked
			p.LikesCount = before.LikesCount
		},
	}
}

func loaded(t *testing.T, l *PostList, posts ...api.Post) {
	t.Helper()
	require.True(t, l.Finish(l.BeginLoad(), posts, nil))
}

func TestPostList_LoadLifecycle(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	assert.Equal(t, StatusIdle, feed.View().Status)

	tk := feed.BeginLoad()
	assert.Equal(t, StatusLoading, feed.View().Status)
	assert.True(t, feed.Finish(tk, []api.Post{{ID: "p1"}}, nil))

	v := feed.View()
	assert.True(t, v.Ready())
	assert.Equal(t, "feed", v.Name)
	require.Len(t, v.Items, 1)
	assert.False(t, v.LoadedAt.IsZero())

	v.Items[0].Content = "mutated"
	got, ok := feed.Find("p1")
	require.True(t, ok)
	assert.Empty(t, got.Content, "views must be copies")
}

func TestPostList_FailedFetchKeepsItems(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	loaded(t, feed, api.Post{ID: "p1"})

	boom := errors.New("boom")
	assert.True(t, feed.Finish(feed.BeginLoad(), nil, boom))
	v := feed.View()
	assert.Equal(t, StatusFailed, v.Status)
	assert.ErrorIs(t, v.Err, boom)
	assert.Len(t, v.Items, 1)
}

func TestPostList_StaleTicketDropped(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})

	old := feed.BeginLoad()
	current := feed.BeginLoad()
	assert.False(t, feed.Finish(old, []api.Post{{ID: "old"}}, nil))
	assert.True(t, feed.Finish(current, []api.Post{{ID: "new"}}, nil))
	assert.False(t, feed.Finish(current, []api.Post{{ID: "again"}}, nil))

	v := feed.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, "new", v.Items[0].ID)
}

func TestPostList_ClosedIgnoresResults(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	tk := feed.BeginLoad()
	feed.Close()
	assert.True(t, feed.Closed())
	assert.False(t, feed.Finish(tk, []api.Post{{ID: "p1"}}, nil))
	assert.Empty(t, feed.View().Items)
}

func TestApply_PatchesEveryCopy(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	mine := s.NewPostList("mine", Policy{})
	comments := s.NewEnrichedCommentList("comments")
	detail := s.NewPostDetail("detail")

	post := api.Post{ID: "p1", LikesCount: 5}
	loaded(t, feed, post, api.Post{ID: "p2"})
	loaded(t, mine, post)
	require.True(t, comments.Finish(comments.BeginLoad(), []api.EnrichedComment{
		{Comment: api.Comment{ID: "c1"}, Post: post},
		{Comment: api.Comment{ID: "c2"}, Post: post},
	}, nil))
	require.True(t, detail.Finish(detail.BeginLoad(), post, nil))

	undo, err := s.Apply([]Target{feed, mine, comments, detail}, Op{PostID: "p1", Patch: likePatch()})
	require.NoError(t, err)

	for _, find := range []func(string) (api.Post, bool){feed.Find, mine.Find, comments.Find} {
		p, ok := find("p1")
		require.True(t, ok)
		assert.True(t, p.IsLiked)
		assert.Equal(t, 6, p.LikesCount)
	}
	for _, c := range comments.View().Items {
		assert.Equal(t, 6, c.Post.LikesCount)
	}
	assert.Equal(t, 6, detail.View().Post.LikesCount)
	other, _ := feed.Find("p2")
	assert.Equal(t, 0, other.LikesCount)

	undo()
	undo()
	for _, find := range []func(string) (api.Post, bool){feed.Find, mine.Find, comments.Find} {
		p, _ := find("p1")
		assert.False(t, p.IsLiked)
		assert.Equal(t, 5, p.LikesCount)
	}
	assert.Equal(t, 5, detail.View().Post.LikesCount)
}

func TestApply_UnlikeRemovesFromLikedList(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	likes := s.NewPostList("likes", Policy{RemoveWhenUnliked: true})
	post := api.Post{ID: "p1", IsLiked: true, LikesCount: 3}
	loaded(t, feed, post)
	loaded(t, likes, api.Post{ID: "p0", IsLiked: true}, post, api.Post{ID: "p2", IsLiked: true})

	undo, err := s.Apply([]Target{feed, likes}, Op{PostID: "p1", Patch: unlikePatch(), Unliked: true})
	require.NoError(t, err)

	p, ok := feed.Find("p1")
	require.True(t, ok)
	assert.False(t, p.IsLiked)
	assert.Equal(t, 2, p.LikesCount)
	_, ok = likes.Find("p1")
	assert.False(t, ok)

	undo()
	ids := []string{}
	for _, it := range likes.View().Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"p0", "p1", "p2"}, ids)
	p, _ = feed.Find("p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 3, p.LikesCount)
}

func TestApply_RemoveEverywhere(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	comments := s.NewEnrichedCommentList("comments")
	detail := s.NewPostDetail("detail")
	loaded(t, feed, api.Post{ID: "p1"}, api.Post{ID: "p2"})
	require.True(t, comments.Finish(comments.BeginLoad(), []api.EnrichedComment{
		{Comment: api.Comment{ID: "c1"}, Post: api.Post{ID: "p1"}},
		{Comment: api.Comment{ID: "c2"}, Post: api.Post{ID: "p2"}},
	}, nil))
	require.True(t, detail.Finish(detail.BeginLoad(), api.Post{ID: "p1"}, nil))

	undo, err := s.Apply([]Target{feed, comments, detail}, Op{PostID: "p1", Remove: true})
	require.NoError(t, err)
	assert.Len(t, feed.View().Items, 1)
	require.Len(t, comments.View().Items, 1)
	assert.Equal(t, "c2", comments.View().Items[0].ID)
	assert.False(t, detail.View().Found)

	undo()
	assert.Equal(t, "p1", feed.View().Items[0].ID)
	assert.Len(t, comments.View().Items, 2)
	assert.True(t, detail.View().Found)
}

func TestApply_UndoSkippedAfterRefetch(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	loaded(t, feed, api.Post{ID: "p1", LikesCount: 1})

	undo, err := s.Apply([]Target{feed}, Op{PostID: "p1", Patch: likePatch()})
	require.NoError(t, err)

	loaded(t, feed, api.Post{ID: "p1", LikesCount: 2, IsLiked: true})
	undo()
	p, _ := feed.Find("p1")
	assert.Equal(t, 2, p.LikesCount)
	assert.True(t, p.IsLiked)
}

func TestApply_FailedRefetchStillUndoes(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	loaded(t, feed, api.Post{ID: "p1", LikesCount: 1})

	undo, err := s.Apply([]Target{feed}, Op{PostID: "p1", Patch: likePatch()})
	require.NoError(t, err)
	feed.Finish(feed.BeginLoad(), nil, errors.New("offline"))

	undo()
	p, _ := feed.Find("p1")
	assert.Equal(t, 1, p.LikesCount)
}

func TestApply_RollbackLeavesOtherMutationsAlone(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	loaded(t, feed, api.Post{ID: "p1", LikesCount: 1}, api.Post{ID: "p2", Content: "old"})

	undoLike, err := s.Apply([]Target{feed}, Op{PostID: "p1", Patch: likePatch()})
	require.NoError(t, err)
	edit := &PostPatch{
		Apply:  func(p *api.Post) { p.Content = "new" },
		Revert: func(p *api.Post, before api.Post) { p.Content = before.Content },
	}
	_, err = s.Apply([]Target{feed}, Op{PostID: "p2", Patch: edit})
	require.NoError(t, err)

	undoLike()
	p2, _ := feed.Find("p2")
	assert.Equal(t, "new", p2.Content)
	p1, _ := feed.Find("p1")
	assert.Equal(t, 1, p1.LikesCount)
}

func TestApply_RequireGuardsEveryTarget(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	counters := s.NewCounters("stats", "u1")
	loaded(t, feed, api.Post{ID: "p1", IsLiked: true, LikesCount: 6})
	require.True(t, counters.Finish(counters.BeginLoad(), api.Stats{Likes: 4}, nil))

	unliked := func(p api.Post) bool { return !p.IsLiked }
	op := Op{PostID: "p1", Patch: likePatch(), Delta: Delta{LikesOf: "u1", Likes: 1}, Require: unliked}
	undo, err := s.Apply([]Target{feed, counters}, op)
	assert.ErrorIs(t, err, ErrStale)
	assert.Nil(t, undo)
	p, _ := feed.Find("p1")
	assert.Equal(t, 6, p.LikesCount)
	assert.Equal(t, 4, counters.View().Stats.Likes)

	// A post no target holds has nothing to contradict the caller.
	op.PostID = "p9"
	_, err = s.Apply([]Target{feed, counters}, op)
	require.NoError(t, err)
	assert.Equal(t, 5, counters.View().Stats.Likes)
}

func TestApply_ForeignTarget(t *testing.T) {
	a, b := NewStore(), NewStore()
	_, err := a.Apply([]Target{b.NewPostList("x", Policy{})}, Op{PostID: "p1"})
	assert.ErrorIs(t, err, ErrForeignTarget)
}

func TestCommentList_PrependSwapAndUndo(t *testing.T) {
	s := NewStore()
	list := s.NewCommentList("comments", "p1")
	other := s.NewCommentList("other", "p9")
	require.True(t, list.Finish(list.BeginLoad(), []api.Comment{{ID: "c1", PostID: "p1"}}, nil))
	require.True(t, other.Finish(other.BeginLoad(), nil, nil))

	tmp := api.Comment{ID: "tmp-1", PostID: "p1", Content: "hi"}
	undo, err := s.Apply([]Target{list, other}, Op{PostID: "p1", AddComment: &tmp})
	require.NoError(t, err)
	items := list.View().Items
	require.Len(t, items, 2)
	assert.Equal(t, "tmp-1", items[0].ID)
	assert.Empty(t, other.View().Items)

	undo()
	assert.Len(t, list.View().Items, 1)

	_, err = s.Apply([]Target{list}, Op{PostID: "p1", AddComment: &tmp})
	require.NoError(t, err)
	_, err = s.Apply([]Target{list}, Op{PostID: "p1", SwapComment: &CommentSwap{
		OldID: "tmp-1",
		New:   api.Comment{ID: "c2", PostID: "p1", Content: "hi"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "c2", list.View().Items[0].ID)
}

func TestCounters_DeltaClampAndUndo(t *testing.T) {
	s := NewStore()
	mine := s.NewCounters("mine", "u1")
	theirs := s.NewCounters("theirs", "u2")
	require.True(t, mine.Finish(mine.BeginLoad(), api.Stats{Posts: 1, Comments: 3, Likes: 0}, nil))
	require.True(t, theirs.Finish(theirs.BeginLoad(), api.Stats{Posts: 4}, nil))

	undo, err := s.Apply([]Target{mine, theirs}, Op{Delta: Delta{
		PostsOf: "u1", Posts: -2,
		CommentsOf: "u1", Comments: 1,
		LikesOf: "u1", Likes: -1,
	}})
	require.NoError(t, err)
	assert.Equal(t, api.Stats{Posts: 0, Comments: 4, Likes: 0}, mine.View().Stats)
	assert.Equal(t, 4, theirs.View().Stats.Posts)

	undo()
	assert.Equal(t, api.Stats{Posts: 1, Comments: 3, Likes: 0}, mine.View().Stats)
}

func TestCounters_NotLoadedIgnoresDelta(t *testing.T) {
	s := NewStore()
	c := s.NewCounters("mine", "u1")
	_, err := s.Apply([]Target{c}, Op{Delta: Delta{PostsOf: "u1", Posts: 1}})
	require.NoError(t, err)
	assert.False(t, c.View().Loaded)
}

func TestStore_ConcurrentApplyAndView(t *testing.T) {
	s := NewStore()
	feed := s.NewPostList("feed", Policy{})
	var posts []api.Post
	for i := 0; i < 50; i++ {
		posts = append(posts, api.Post{ID: fmt.Sprintf("p%d", i)})
	}
	loaded(t, feed, posts...)

	var wg sync.WaitGroup
	for _, p := range posts {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			undo, err := s.Apply([]Target{feed}, Op{PostID: id, Patch: likePatch()})
			if err == nil {
				undo()
			}
		}(p.ID)
		go func() {
			defer wg.Done()
			_ = feed.View()
		}()
	}
	wg.Wait()
	for _, p := range feed.View().Items {
		assert.Equal(t, 0, p.LikesCount, p.ID)
		assert.False(t, p.IsLiked, p.ID)
	}
}
