// Package apitest provides a mock api.Gateway for tests.
package apitest

import (
	"context"
	"slices"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/five82/murmur/internal/api"
)

var _ api.Gateway = (*Gateway)(nil)

// Gateway is an api.Gateway built on testify's mock. A method with an
// expectation registered through On answers from it. A method without one
// gives a fixed default: empty lists, success for mutations, and rejection
// for login, second factor, registration, identity and user lookup. Every
// call is recorded by method name.
type Gateway struct {
	mock.Mock

	mu    sync.Mutex
	calls []string
}

// Methods returns the names of the methods called so far, in order.
func (g *Gateway) Methods() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// Count reports how many times method was called.
func (g *Gateway) Count(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (g *Gateway) call(method string, args ...any) (mock.Arguments, bool) {
	g.mu.Lock()
	g.calls = append(g.calls, method)
	g.mu.Unlock()
	if !g.expects(method) {
		return nil, false
	}
	return g.MethodCalled(method, args...), true
}

func (g *Gateway) expects(method string) bool {
	for _, c := range g.ExpectedCalls {
		if c.Method == method {
			return true
		}
	}
	return false
}

func posts(args mock.Arguments) ([]api.Post, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.Post), args.Error(1)
}

func post(args mock.Arguments) (*api.Post, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Post), args.Error(1)
}

func user(args mock.Arguments) (*api.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func authResult(args mock.Arguments) (*api.AuthResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.AuthResult), args.Error(1)
}

func (g *Gateway) FetchFeed(ctx context.Context, viewerID string) ([]api.Post, error) {
	args, ok := g.call("FetchFeed", ctx, viewerID)
	if !ok {
		return nil, nil
	}
	return posts(args)
}

func (g *Gateway) FetchUserPosts(ctx context.Context, userID, viewerID string) ([]api.Post, error) {
	args, ok := g.call("FetchUserPosts", ctx, userID, viewerID)
	if !ok {
		return nil, nil
	}
	return posts(args)
}

func (g *Gateway) FetchLikedPosts(ctx context.Context, userID, viewerID string) ([]api.Post, error) {
	args, ok := g.call("FetchLikedPosts", ctx, userID, viewerID)
	if !ok {
		return nil, nil
	}
	return posts(args)
}

func (g *Gateway) FetchUserComments(ctx context.Context, userID, viewerID string) ([]api.EnrichedComment, error) {
	args, ok := g.call("FetchUserComments", ctx, userID, viewerID)
	if !ok {
		return nil, nil
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.EnrichedComment), args.Error(1)
}

func (g *Gateway) FetchProfileStats(ctx context.Context, userID string) (api.Stats, error) {
	args, ok := g.call("FetchProfileStats", ctx, userID)
	if !ok {
		return api.Stats{}, nil
	}
	return args.Get(0).(api.Stats), args.Error(1)
}

func (g *Gateway) FindUserByUsername(ctx context.Context, username string) (*api.User, error) {
	args, ok := g.call("FindUserByUsername", ctx, username)
	if !ok {
		return nil, &api.Error{Status: 404, Message: "user not found"}
	}
	return user(args)
}

func (g *Gateway) FetchPostDetails(ctx context.Context, postID, viewerID string) (*api.Post, error) {
	args, ok := g.call("FetchPostDetails", ctx, postID, viewerID)
	if !ok {
		return &api.Post{ID: postID}, nil
	}
	return post(args)
}

func (g *Gateway) FetchComments(ctx context.Context, postID string) ([]api.Comment, error) {
	args, ok := g.call("FetchComments", ctx, postID)
	if !ok {
		return nil, nil
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]api.Comment), args.Error(1)
}

func (g *Gateway) ToggleLike(ctx context.Context, postID string, currentlyLiked bool) error {
	args, ok := g.call("ToggleLike", ctx, postID, currentlyLiked)
	if !ok {
		return nil
	}
	return args.Error(0)
}

func (g *Gateway) DeletePost(ctx context.Context, postID string) error {
	args, ok := g.call("DeletePost", ctx, postID)
	if !ok {
		return nil
	}
	return args.Error(0)
}

func (g *Gateway) UpdatePost(ctx context.Context, postID, content string) error {
	args, ok := g.call("UpdatePost", ctx, postID, content)
	if !ok {
		return nil
	}
	return args.Error(0)
}

func (g *Gateway) AddComment(ctx context.Context, postID, content string) (*api.Comment, error) {
	args, ok := g.call("AddComment", ctx, postID, content)
	if !ok {
		return &api.Comment{ID: "c-" + postID, PostID: postID, Content: content}, nil
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Comment), args.Error(1)
}

func (g *Gateway) CreatePost(ctx context.Context, content string) error {
	args, ok := g.call("CreatePost", ctx, content)
	if !ok {
		return nil
	}
	return args.Error(0)
}

func (g *Gateway) Login(ctx context.Context, creds api.Credentials) (*api.AuthResult, error) {
	args, ok := g.call("Login", ctx, creds)
	if !ok {
		return nil, &api.Error{Status: 401, Message: "invalid credentials"}
	}
	return authResult(args)
}

func (g *Gateway) VerifySecondFactor(ctx context.Context, tempToken, code string) (*api.AuthResult, error) {
	args, ok := g.call("VerifySecondFactor", ctx, tempToken, code)
	if !ok {
		return nil, &api.Error{Status: 401, Message: "invalid code"}
	}
	return authResult(args)
}

func (g *Gateway) Register(ctx context.Context, reg api.Registration) (*api.RegisterResult, error) {
	args, ok := g.call("Register", ctx, reg)
	if !ok {
		return nil, &api.Error{Status: 400, Message: "registration closed"}
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.RegisterResult), args.Error(1)
}

func (g *Gateway) Logout(ctx context.Context) error {
	args, ok := g.call("Logout", ctx)
	if !ok {
		return nil
	}
	return args.Error(0)
}

func (g *Gateway) FetchCurrentIdentity(ctx context.Context) (*api.User, error) {
	args, ok := g.call("FetchCurrentIdentity", ctx)
	if !ok {
		return nil, &api.Error{Status: 401, Message: "unauthorized"}
	}
	return user(args)
}

func (g *Gateway) UpdateProfile(ctx context.Context, userID, bio string) error {
	args, ok := g.call("UpdateProfile", ctx, userID, bio)
	if !ok {
		return nil
	}
	return args.Error(0)
}
