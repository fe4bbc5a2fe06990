package screen

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/optimistic"
	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/state"
	"github.com/five82/murmur/internal/validate"
)

// ErrUnknownPost is returned when an action names a post the screen does not show.
var ErrUnknownPost = errors.New("post is not on this screen")

// Deps are the collaborators every screen needs.
type Deps struct {
	Gateway api.PostGateway
	Store   *state.Store
	Coord   *optimistic.Coordinator
	Viewer  optimistic.Viewer
	Logger  *slog.Logger
}

type handle interface {
	state.Target
	Close()
}

// base holds what every screen shares: a context cancelled on Close, the
// collections it registered, and the last transient message.
type base struct {
	deps   Deps
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	unregister []func()
	handles    []handle
	notice     string
	closed     bool
}

func newBase(parent context.Context, deps Deps, name string) base {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return base{
		deps:   deps,
		logger: logger.With("screen", name),
		ctx:    ctx,
		cancel: cancel,
	}
}

// track registers handles with the coordinator and closes them with the screen.
func (b *base) track(handles ...handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		for _, h := range handles {
			h.Close()
		}
		return
	}
	targets := make([]state.Target, 0, len(handles))
	for _, h := range handles {
		targets = append(targets, h)
	}
	b.unregister = append(b.unregister, b.deps.Coord.Register(targets...))
	b.handles = append(b.handles, handles...)
}

// Close stops in-flight fetches from landing and releases the screen's
// collections. Safe to call more than once.
func (b *base) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unregister, handles := b.unregister, b.handles
	b.unregister, b.handles = nil, nil
	b.mu.Unlock()

	b.cancel()
	for _, fn := range unregister {
		fn()
	}
	for _, h := range handles {
		h.Close()
	}
}

// Notice returns the last transient message.
func (b *base) Notice() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notice
}

// ClearNotice drops the transient message.
func (b *base) ClearNotice() {
	b.setNotice("")
}

func (b *base) setNotice(msg string) {
	b.mu.Lock()
	b.notice = msg
	b.mu.Unlock()
}

// report turns a mutation result into a transient message. The error is
// returned unchanged.
func (b *base) report(err error) error {
	if err == nil {
		return nil
	}
	if msg := noticeFor(err); msg != "" {
		b.setNotice(msg)
	}
	return err
}

func noticeFor(err error) string {
	var rb *optimistic.RollbackError
	switch {
	case errors.Is(err, optimistic.ErrInFlight):
		return ""
	case errors.Is(err, session.ErrNotAuthenticated):
		return "Log in to do that."
	case errors.Is(err, session.ErrNotAuthor):
		return "You can only change your own posts."
	case errors.As(err, &rb):
		return "Could not " + verb(rb.Action) + ": " + api.Message(rb.Err)
	}
	if ve, ok := validate.AsError(err); ok {
		return ve.Error()
	}
	return api.Message(err)
}

func verb(a optimistic.Action) string {
	switch a {
	case optimistic.ActionLike:
		return "update like"
	case optimistic.ActionDelete:
		return "delete post"
	case optimistic.ActionEdit:
		return "save changes"
	case optimistic.ActionComment:
		return "publish comment"
	default:
		return string(a)
	}
}

func (b *base) viewerID() string {
	if b.deps.Viewer == nil {
		return ""
	}
	return b.deps.Viewer.UserID()
}

func (b *base) toggleLike(post api.Post, ok bool, scope optimistic.LikeScope) error {
	if !ok {
		return ErrUnknownPost
	}
	return b.report(b.deps.Coord.ToggleLike(b.ctx, post, scope))
}

func (b *base) deletePost(post api.Post, ok bool) error {
	if !ok {
		return ErrUnknownPost
	}
	return b.report(b.deps.Coord.DeletePost(b.ctx, post))
}

func (b *base) editPost(post api.Post, ok bool, content string) error {
	if !ok {
		return ErrUnknownPost
	}
	return b.report(b.deps.Coord.EditPost(b.ctx, post, content))
}

type loader[T any] interface {
	BeginLoad() state.Ticket
	Finish(state.Ticket, T, error) bool
}

// load runs one fetch into l. Results that arrive after the screen closed or
// a newer fetch started are dropped by the collection.
func load[T any](ctx context.Context, l loader[T], fetch func(context.Context) (T, error)) error {
	ticket := l.BeginLoad()
	value, err := fetch(ctx)
	l.Finish(ticket, value, err)
	return err
}

// findIn returns the first copy of postID among finders.
func findIn(postID string, finders ...func(string) (api.Post, bool)) (api.Post, bool) {
	for _, find := range finders {
		if p, ok := find(postID); ok {
			return p, true
		}
	}
	return api.Post{}, false
}
