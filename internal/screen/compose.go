package screen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/five82/murmur/internal/session"
	"github.com/five82/murmur/internal/validate"
)

// ErrSubmitting is returned while a previous submit is still running.
var ErrSubmitting = errors.New("post is already being published")

// Compose publishes new posts. It is not optimistic: the server assigns
// everything, so the feed is refetched afterwards.
type Compose struct {
	base
	onPosted   func()
	submitting atomic.Bool
}

// NewCompose creates the compose screen. onPosted runs after a successful
// submit, typically to refresh the feed.
func NewCompose(ctx context.Context, deps Deps, onPosted func()) *Compose {
	return &Compose{base: newBase(ctx, deps, "compose"), onPosted: onPosted}
}

// Submitting reports whether a post is being published.
func (c *Compose) Submitting() bool {
	return c.submitting.Load()
}

// Submit publishes content.
func (c *Compose) Submit(content string) error {
	if c.deps.Viewer == nil || !c.deps.Viewer.IsAuthenticated() {
		return c.report(session.ErrNotAuthenticated)
	}
	content, err := validate.PostContent(content)
	if err != nil {
		return c.report(err)
	}
	if !c.submitting.CompareAndSwap(false, true) {
		return ErrSubmitting
	}
	defer c.submitting.Store(false)

	if err := c.deps.Gateway.CreatePost(c.ctx, content); err != nil {
		c.logger.Warn("create post failed", "err", err)
		c.setNotice("Could not publish post: " + noticeFor(err))
		return fmt.Errorf("create post: %w", err)
	}
	c.ClearNotice()
	if c.onPosted != nil {
		c.onPosted()
	}
	return nil
}
