package state

import (
	"errors"
	"sync"

	"github.com/five82/murmur/internal/api"
)

// Status is the fetch state of a collection.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrForeignTarget is returned when Apply is given a target created by another Store.
var ErrForeignTarget = errors.New("target belongs to a different store")

// ErrStale is returned when no copy of the post satisfies Op.Require.
var ErrStale = errors.New("post changed since it was read")

// Store owns every view collection and counter set of a running client. A
// single lock guards all of them so that one mutation can change every copy
// of an entity in one step.
type Store struct {
	mu sync.RWMutex
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// PostPatch changes fields of a post. Revert restores the fields Apply touches
// from before, the copy taken just ahead of Apply; it must leave other fields
// alone so that unrelated mutations on the same post survive a rollback.
type PostPatch struct {
	Apply  func(p *api.Post)
	Revert func(p *api.Post, before api.Post)
}

// CommentSwap replaces a provisional comment with the stored one.
type CommentSwap struct {
	OldID string
	New   api.Comment
}

// Delta moves aggregate counters. Each field applies only to the counter set
// owned by the matching user id.
type Delta struct {
	PostsOf    string
	Posts      int
	CommentsOf string
	Comments   int
	LikesOf    string
	Likes      int
}

// Op is one logical change, projected onto every target.
type Op struct {
	PostID string
	// Patch is applied to every copy of the post.
	Patch *PostPatch
	// Remove drops every entry holding the post.
	Remove bool
	// Unliked marks a patch that clears the viewer's like. Lists whose Policy
	// has RemoveWhenUnliked drop the post instead of patching it.
	Unliked bool
	// AddComment is prepended to the comment lists of its post.
	AddComment *api.Comment
	// SwapComment backfills server-assigned comment fields.
	SwapComment *CommentSwap
	Delta       Delta
	// Require, when set, must hold for at least one copy of the post. If the
	// targets hold copies and none satisfies it, Apply changes nothing and
	// returns ErrStale.
	Require func(p api.Post) bool
}

// Target is a collection or counter set a mutation may touch.
type Target interface {
	owner() *Store
	// matchPost reports whether the target holds a copy of postID and whether
	// any copy satisfies match. Called with the store lock held.
	matchPost(postID string, match func(api.Post) bool) (found, matched bool)
	// project applies op and returns an undo func, or nil when nothing changed.
	// Called with the store lock held.
	project(op Op) func()
}

// Apply projects op onto every target under one lock and returns a function
// that reverts exactly the changes made. The revert is safe to call more than
// once and is skipped for any collection that has since been refetched or closed.
func (s *Store) Apply(targets []Target, op Op) (func(), error) {
	for _, t := range targets {
		if t == nil || t.owner() != s {
			return nil, ErrForeignTarget
		}
	}

	s.mu.Lock()
	if op.Require != nil && !satisfied(targets, op) {
		s.mu.Unlock()
		return nil, ErrStale
	}
	undos := make([]func(), 0, len(targets))
	for _, t := range targets {
		if undo := t.project(op); undo != nil {
			undos = append(undos, undo)
		}
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
		})
	}, nil
}

func satisfied(targets []Target, op Op) bool {
	held := false
	for _, t := range targets {
		found, matched := t.matchPost(op.PostID, op.Require)
		if matched {
			return true
		}
		held = held || found
	}
	return !held
}
