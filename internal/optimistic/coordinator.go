package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/state"
	"github.com/five82/murmur/internal/validate"
)

// ProvisionalPrefix starts the id of a comment the server has not stored yet.
const ProvisionalPrefix = "tmp-"

// IsProvisional reports whether id belongs to a comment still being published.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// Action names a mutation kind.
type Action string

const (
	ActionLike    Action = "like"
	ActionDelete  Action = "delete"
	ActionEdit    Action = "edit"
	ActionComment Action = "comment"
)

// Phase is the state of one mutation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseApplied
	PhaseConfirmed
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseApplied:
		return "applied"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled back"
	default:
		return "idle"
	}
}

// Event reports a phase change.
type Event struct {
	Action Action
	PostID string
	Phase  Phase
	Err    error
}

// ErrInFlight is returned when the same action on the same post is already running.
var ErrInFlight = errors.New("action already in progress")

// RollbackError reports a mutation the server rejected. Local state has been
// restored by the time it is returned.
type RollbackError struct {
	Action Action
	PostID string
	Err    error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%s on post %s failed: %v", e.Action, e.PostID, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// Viewer is the signed-in user as seen by the coordinator. *session.Store
// implements it.
type Viewer interface {
	IsAuthenticated() bool
	UserID() string
	Identity() (api.User, bool)
}

var _ Viewer = (*session.Store)(nil)

// LikeScope describes where a like toggle was triggered.
type LikeScope struct {
	// OwnLikes is set on the viewer's own profile, where the like counter is shown.
	OwnLikes bool
}

// Options configure a Coordinator.
type Options struct {
	Logger *slog.Logger
	// Observe receives every phase change. It is called synchronously and must not block.
	Observe func(Event)
	// NewID returns ids for provisional comments. They should start with
	// ProvisionalPrefix.
	NewID func() string
	Now   func() time.Time
}

type flightKey struct {
	action Action
	postID string
}

type registration struct {
	id      int
	targets []state.Target
}

// Coordinator applies mutations to every registered collection before the
// server answers and reverts them when it refuses.
type Coordinator struct {
	store   *state.Store
	gw      api.PostGateway
	viewer  Viewer
	logger  *slog.Logger
	observe func(Event)
	newID   func() string
	now     func() time.Time

	mu       sync.Mutex
	nextID   int
	regs     []registration
	inFlight map[flightKey]struct{}
}

// New creates a Coordinator over store.
func New(store *state.Store, gw api.PostGateway, viewer Viewer, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return ProvisionalPrefix + ulid.Make().String() }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:    store,
		gw:       gw,
		viewer:   viewer,
		logger:   logger.With("component", "optimistic"),
		observe:  opts.Observe,
		newID:    newID,
		now:      now,
		inFlight: make(map[flightKey]struct{}),
	}
}

// Register adds targets to the set every mutation is projected onto. The
// returned func removes them again.
func (c *Coordinator) Register(targets ...state.Target) (unregister func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.regs = append(c.regs, registration{id: id, targets: slices.Clone(targets)})
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.regs = slices.DeleteFunc(c.regs, func(r registration) bool { return r.id == id })
		})
	}
}

// InFlight reports whether action on postID is waiting for the server.
func (c *Coordinator) InFlight(action Action, postID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[flightKey{action, postID}]
	return ok
}

// ToggleLike flips the viewer's like on post. Only copies that still show the
// same like state as post are changed. When every held copy already shows the
// other state, post is stale and nothing happens: no counter moves and the
// server is not called.
func (c *Coordinator) ToggleLike(ctx context.Context, post api.Post, scope LikeScope) error {
	if !c.viewer.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	wasLiked := post.IsLiked
	op := state.Op{
		PostID: post.ID,
		Patch: &state.PostPatch{
			Apply: func(p *api.Post) {
				if p.IsLiked != wasLiked {
					return
				}
				p.IsLiked = !wasLiked
				if wasLiked {
					p.LikesCount = max(p.LikesCount-1, 0)
				} else {
					p.LikesCount++
				}
			},
			Revert: func(p *api.Post, before api.Post) {
				p.IsLiked = before.IsLiked
				p.LikesCount = before.LikesCount
			},
		},
		Unliked: wasLiked,
		Require: func(p api.Post) bool { return p.IsLiked == wasLiked },
	}
	if scope.OwnLikes {
		op.Delta.LikesOf = c.viewer.UserID()
		op.Delta.Likes = 1
		if wasLiked {
			op.Delta.Likes = -1
		}
	}
	return c.run(ctx, ActionLike, post.ID, op, func(ctx context.Context) error {
		return c.gw.ToggleLike(ctx, post.ID, wasLiked)
	})
}

// DeletePost removes post everywhere and lowers its author's post counter.
func (c *Coordinator) DeletePost(ctx context.Context, post api.Post) error {
	if err := c.requireAuthor(post); err != nil {
		return err
	}
	op := state.Op{
		PostID: post.ID,
		Remove: true,
		Delta:  state.Delta{PostsOf: post.AuthorID, Posts: -1},
	}
	return c.run(ctx, ActionDelete, post.ID, op, func(ctx context.Context) error {
		return c.gw.DeletePost(ctx, post.ID)
	})
}

// EditPost replaces the content of post.
func (c *Coordinator) EditPost(ctx context.Context, post api.Post, content string) error {
	if err := c.requireAuthor(post); err != nil {
		return err
	}
	content, err := validate.PostContent(content)
	if err != nil {
		return err
	}
	op := state.Op{
		PostID: post.ID,
		Patch: &state.PostPatch{
			Apply: func(p *api.Post) { p.Content = content },
			Revert: func(p *api.Post, before api.Post) {
				if p.Content == content {
					p.Content = before.Content
				}
			},
		},
	}
	return c.run(ctx, ActionEdit, post.ID, op, func(ctx context.Context) error {
		return c.gw.UpdatePost(ctx, post.ID, content)
	})
}

// AddComment prepends a provisional comment to postID's comment lists, bumps
// the post's comment count and the viewer's comment counter, and swaps in the
// stored comment once the server returns it.
func (c *Coordinator) AddComment(ctx context.Context, postID, content string) (api.Comment, error) {
	viewer, ok := c.viewer.Identity()
	if !ok {
		return api.Comment{}, session.ErrNotAuthenticated
	}
	content, err := validate.PostContent(content)
	if err != nil {
		return api.Comment{}, err
	}

	provisional := api.Comment{
		ID:        c.newID(),
		PostID:    postID,
		AuthorID:  viewer.ID,
		Content:   content,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
		Author:    api.Author{ID: viewer.ID, Username: viewer.Username, Image: viewer.Image},
	}
	op := state.Op{
		PostID:     postID,
		AddComment: &provisional,
		Patch: &state.PostPatch{
			Apply: func(p *api.Post) { p.CommentsCount++ },
			Revert: func(p *api.Post, before api.Post) {
				p.CommentsCount = before.CommentsCount
			},
		},
		Delta: state.Delta{CommentsOf: viewer.ID, Comments: 1},
	}

	var stored *api.Comment
	err = c.run(ctx, ActionComment, postID, op, func(ctx context.Context) error {
		var err error
		stored, err = c.gw.AddComment(ctx, postID, content)
		return err
	})
	if err != nil {
		return api.Comment{}, err
	}

	final := provisional
	if stored != nil {
		final = backfill(*stored, provisional)
	}
	swap := state.Op{PostID: postID, SwapComment: &state.CommentSwap{OldID: provisional.ID, New: final}}
	if _, err := c.store.Apply(c.targets(), swap); err != nil {
		c.logger.Warn("comment backfill failed", "post_id", postID, "err", err)
	}
	return final, nil
}

// backfill fills fields the server left out from the provisional comment.
func backfill(stored, provisional api.Comment) api.Comment {
	if stored.ID == "" {
		stored.ID = provisional.ID
	}
	if stored.PostID == "" {
		stored.PostID = provisional.PostID
	}
	if stored.AuthorID == "" {
		stored.AuthorID = provisional.AuthorID
	}
	if stored.Content == "" {
		stored.Content = provisional.Content
	}
	if stored.CreatedAt == "" {
		stored.CreatedAt = provisional.CreatedAt
	}
	if stored.Author.ID == "" && stored.Author.Username == "" {
		stored.Author = provisional.Author
	}
	return stored
}

func (c *Coordinator) requireAuthor(post api.Post) error {
	if !c.viewer.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	if post.AuthorID == "" || post.AuthorID != c.viewer.UserID() {
		return session.ErrNotAuthor
	}
	return nil
}

func (c *Coordinator) targets() []state.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []state.Target
	for _, r := range c.regs {
		out = append(out, r.targets...)
	}
	return out
}

func (c *Coordinator) acquire(k flightKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[k]; busy {
		return false
	}
	c.inFlight[k] = struct{}{}
	return true
}

func (c *Coordinator) release(k flightKey) {
	c.mu.Lock()
	delete(c.inFlight, k)
	c.mu.Unlock()
}

func (c *Coordinator) emit(ev Event) {
	if c.observe != nil {
		c.observe(ev)
	}
}

// run is the shared mutation template: project locally, call the server,
// then confirm or revert.
func (c *Coordinator) run(ctx context.Context, action Action, postID string, op state.Op, remote func(context.Context) error) error {
	key := flightKey{action, postID}
	if !c.acquire(key) {
		return ErrInFlight
	}
	defer c.release(key)

	undo, err := c.store.Apply(c.targets(), op)
	if errors.Is(err, state.ErrStale) {
		c.logger.Debug("mutation skipped, post already changed", "action", action, "post_id", postID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s post %s: %w", action, postID, err)
	}
	c.emit(Event{Action: action, PostID: postID, Phase: PhaseApplied})

	if err := remote(ctx); err != nil {
		undo()
		c.logger.Warn("optimistic mutation rolled back", "action", action, "post_id", postID, "err", err)
		c.emit(Event{Action: action, PostID: postID, Phase: PhaseRolledBack, Err: err})
		return &RollbackError{Action: action, PostID: postID, Err: err}
	}

	c.logger.Debug("optimistic mutation confirmed", "action", action, "post_id", postID)
	c.emit(Event{Action: action, PostID: postID, Phase: PhaseConfirmed})
	return nil
}
