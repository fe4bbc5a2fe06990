package state

import (
	"slices"
	"time"

	"github.com/five82/murmur/internal/api"
)

// Ticket identifies one fetch of a collection. Results carrying a stale ticket
// are dropped.
type Ticket struct {
	seq uint64
}

// ListView is a copy of a collection taken under the store lock.
type ListView[T any] struct {
	Name     string
	Status   Status
	Err      error
	Items    []T
	LoadedAt time.Time
}

// Ready reports whether the collection has loaded and its last fetch succeeded.
func (v ListView[T]) Ready() bool {
	return v.Status == StatusReady
}

// list is the shared core of every collection: fetch lifecycle plus the
// primitive edits used by projections.
type list[T any] struct {
	store    *Store
	name     string
	status   Status
	err      error
	fetchSeq uint64
	// generation increments whenever items are replaced wholesale; undo
	// closures from older generations are discarded.
	generation uint64
	closed     bool
	loadedAt   time.Time
	items      []T

	key  func(*T) string
	post func(*T) *api.Post
}

func newList[T any](s *Store, name string, key func(*T) string, post func(*T) *api.Post) list[T] {
	return list[T]{store: s, name: name, key: key, post: post}
}

func (l *list[T]) owner() *Store {
	return l.store
}

// BeginLoad marks the collection loading and returns the ticket the fetch
// must present to Finish.
func (l *list[T]) BeginLoad() Ticket {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.fetchSeq++
	l.status = StatusLoading
	l.err = nil
	return Ticket{seq: l.fetchSeq}
}

func (l *list[T]) finish(t Ticket, items []T, err error) bool {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if l.closed || t.seq != l.fetchSeq {
		return false
	}
	if err != nil {
		l.status = StatusFailed
		l.err = err
		return true
	}
	l.items = slices.Clone(items)
	l.generation++
	l.status = StatusReady
	l.err = nil
	l.loadedAt = time.Now()
	return true
}

func (l *list[T]) view() ListView[T] {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return ListView[T]{
		Name:     l.name,
		Status:   l.status,
		Err:      l.err,
		Items:    slices.Clone(l.items),
		LoadedAt: l.loadedAt,
	}
}

// Close discards the collection. Later fetch results and undos are ignored.
func (l *list[T]) Close() {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.closed = true
	l.items = nil
}

// Closed reports whether Close has been called.
func (l *list[T]) Closed() bool {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	return l.closed
}

// Name returns the collection name.
func (l *list[T]) Name() string {
	return l.name
}

func (l *list[T]) findPost(postID string) (api.Post, bool) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	if l.post == nil {
		return api.Post{}, false
	}
	for i := range l.items {
		if p := l.post(&l.items[i]); p != nil && p.ID == postID {
			return *p, true
		}
	}
	return api.Post{}, false
}

func (l *list[T]) matchPost(postID string, match func(api.Post) bool) (found, matched bool) {
	if l.closed || l.post == nil {
		return false, false
	}
	for i := range l.items {
		p := l.post(&l.items[i])
		if p == nil || p.ID != postID {
			continue
		}
		found = true
		if match(*p) {
			return true, true
		}
	}
	return found, false
}

type removal[T any] struct {
	index int
	item  T
}

func (l *list[T]) removeWhere(match func(*T) bool) func() {
	var removed []removal[T]
	kept := make([]T, 0, len(l.items))
	for i := range l.items {
		if match(&l.items[i]) {
			removed = append(removed, removal[T]{index: i, item: l.items[i]})
			continue
		}
		kept = append(kept, l.items[i])
	}
	if len(removed) == 0 {
		return nil
	}
	l.items = kept
	gen := l.generation
	return func() {
		if l.closed || l.generation != gen {
			return
		}
		for _, r := range removed {
			idx := min(r.index, len(l.items))
			l.items = slices.Insert(l.items, idx, r.item)
		}
	}
}

func (l *list[T]) prepend(item T) func() {
	l.items = slices.Insert(l.items, 0, item)
	gen := l.generation
	k := l.key(&item)
	return func() {
		if l.closed || l.generation != gen {
			return
		}
		l.items = slices.DeleteFunc(l.items, func(it T) bool { return l.key(&it) == k })
	}
}

func (l *list[T]) replaceByKey(k string, item T) bool {
	for i := range l.items {
		if l.key(&l.items[i]) == k {
			l.items[i] = item
			return true
		}
	}
	return false
}

type patched struct {
	key    string
	before api.Post
}

func (l *list[T]) patchPost(postID string, patch *PostPatch) func() {
	if l.post == nil || patch == nil || patch.Apply == nil {
		return nil
	}
	var saved []patched
	for i := range l.items {
		p := l.post(&l.items[i])
		if p == nil || p.ID != postID {
			continue
		}
		saved = append(saved, patched{key: l.key(&l.items[i]), before: *p})
		patch.Apply(p)
	}
	if len(saved) == 0 {
		return nil
	}
	gen := l.generation
	return func() {
		if l.closed || l.generation != gen || patch.Revert == nil {
			return
		}
		for _, s := range saved {
			for i := range l.items {
				if l.key(&l.items[i]) != s.key {
					continue
				}
				if p := l.post(&l.items[i]); p != nil && p.ID == postID {
					patch.Revert(p, s.before)
				}
			}
		}
	}
}
