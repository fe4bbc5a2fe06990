package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// PostGateway covers the post, comment and profile endpoints.
type PostGateway interface {
	FetchFeed(ctx context.Context, viewerID string) ([]Post, error)
	FetchUserPosts(ctx context.Context, userID, viewerID string) ([]Post, error)
	FetchLikedPosts(ctx context.Context, userID, viewerID string) ([]Post, error)
	FetchUserComments(ctx context.Context, userID, viewerID string) ([]EnrichedComment, error)
	FetchProfileStats(ctx context.Context, userID string) (Stats, error)
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FetchPostDetails(ctx context.Context, postID, viewerID string) (*Post, error)
	FetchComments(ctx context.Context, postID string) ([]Comment, error)
	ToggleLike(ctx context.Context, postID string, currentlyLiked bool) error
	DeletePost(ctx context.Context, postID string) error
	UpdatePost(ctx context.Context, postID, content string) error
	AddComment(ctx context.Context, postID, content string) (*Comment, error)
	CreatePost(ctx context.Context, content string) error
}

// AuthGateway covers the identity endpoints.
type AuthGateway interface {
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	VerifySecondFactor(ctx context.Context, tempToken, code string) (*AuthResult, error)
	Register(ctx context.Context, reg Registration) (*RegisterResult, error)
	Logout(ctx context.Context) error
	FetchCurrentIdentity(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, userID, bio string) error
}

// Gateway is the full remote surface consumed by the client core.
type Gateway interface {
	PostGateway
	AuthGateway
}

// Ensure Client implements Gateway at compile time.
var _ Gateway = (*Client)(nil)

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	BearerToken() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// BearerToken implements TokenSource.
func (f TokenFunc) BearerToken() string { return f() }

// Options configure a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // zero disables pacing
	Tokens            TokenSource
}

// Client talks to the social feed HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	tokens    TokenSource
	limiter   *rate.Limiter
}

const (
	defaultBaseURL   = "http://localhost:4000"
	defaultUserAgent = "murmur/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent: defaultUserAgent,
		tokens:    opts.Tokens,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// FetchFeed retrieves the home feed as seen by viewerID (empty for anonymous).
func (c *Client) FetchFeed(ctx context.Context, viewerID string) ([]Post, error) {
	var posts []Post
	if err := c.get(ctx, endpoint("api", "posts", "feed"), viewerQuery(viewerID), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchUserPosts retrieves the posts authored by userID.
func (c *Client) FetchUserPosts(ctx context.Context, userID, viewerID string) ([]Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required")
	}
	var posts []Post
	if err := c.get(ctx, endpoint("api", "users", userID, "posts"), viewerQuery(viewerID), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchLikedPosts retrieves the posts liked by userID.
func (c *Client) FetchLikedPosts(ctx context.Context, userID, viewerID string) ([]Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required")
	}
	var posts []Post
	if err := c.get(ctx, endpoint("api", "users", userID, "likes"), viewerQuery(viewerID), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FetchUserComments retrieves the comments written by userID, each with its parent post.
func (c *Client) FetchUserComments(ctx context.Context, userID, viewerID string) ([]EnrichedComment, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id required")
	}
	var comments []EnrichedComment
	if err := c.get(ctx, endpoint("api", "users", userID, "comments"), viewerQuery(viewerID), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// FetchProfileStats retrieves the aggregate counters for userID.
func (c *Client) FetchProfileStats(ctx context.Context, userID string) (Stats, error) {
	if strings.TrimSpace(userID) == "" {
		return Stats{}, fmt.Errorf("user id required")
	}
	var stats Stats
	if err := c.get(ctx, endpoint("api", "users", userID, "stats"), nil, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// FindUserByUsername looks up a user by handle.
func (c *Client) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, fmt.Errorf("username required")
	}
	var user User
	if err := c.get(ctx, endpoint("api", "users", "by-username", username), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchPostDetails retrieves a single post.
func (c *Client) FetchPostDetails(ctx context.Context, postID, viewerID string) (*Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, fmt.Errorf("post id required")
	}
	var post Post
	if err := c.get(ctx, endpoint("api", "posts", postID), viewerQuery(viewerID), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// FetchComments retrieves the comments on postID, newest first.
func (c *Client) FetchComments(ctx context.Context, postID string) ([]Comment, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, fmt.Errorf("post id required")
	}
	var comments []Comment
	if err := c.get(ctx, endpoint("api", "posts", postID, "comments"), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// ToggleLike likes postID, or removes the like when currentlyLiked is true.
func (c *Client) ToggleLike(ctx context.Context, postID string, currentlyLiked bool) error {
	if strings.TrimSpace(postID) == "" {
		return fmt.Errorf("post id required")
	}
	method := http.MethodPost
	if currentlyLiked {
		method = http.MethodDelete
	}
	return c.do(ctx, method, endpoint("api", "posts", postID, "like"), nil, nil)
}

// DeletePost deletes postID.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return fmt.Errorf("post id required")
	}
	return c.do(ctx, http.MethodDelete, endpoint("api", "posts", postID), nil, nil)
}

// UpdatePost replaces the content of postID.
func (c *Client) UpdatePost(ctx context.Context, postID, content string) error {
	if strings.TrimSpace(postID) == "" {
		return fmt.Errorf("post id required")
	}
	return c.do(ctx, http.MethodPut, endpoint("api", "posts", postID), contentRequest{Content: content}, nil)
}

// AddComment publishes a comment on postID and returns the stored comment.
func (c *Client) AddComment(ctx context.Context, postID, content string) (*Comment, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, fmt.Errorf("post id required")
	}
	var comment Comment
	rel := endpoint("api", "posts", postID, "comments")
	if err := c.do(ctx, http.MethodPost, rel, contentRequest{Content: content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, content string) error {
	return c.do(ctx, http.MethodPost, endpoint("api", "posts"), contentRequest{Content: content}, nil)
}

// Login performs the primary credential check.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, endpoint("api", "auth", "login"), creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifySecondFactor completes a login that required a one-time code.
func (c *Client) VerifySecondFactor(ctx context.Context, tempToken, code string) (*AuthResult, error) {
	var result AuthResult
	body := verifyRequest{TempToken: tempToken, OTPToken: code}
	if err := c.do(ctx, http.MethodPost, endpoint("api", "auth", "verify-otp"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) (*RegisterResult, error) {
	var result RegisterResult
	if err := c.do(ctx, http.MethodPost, endpoint("api", "auth", "register"), reg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout notifies the server that the current credential is no longer in use.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, endpoint("api", "auth", "logout"), nil, nil)
}

// FetchCurrentIdentity returns the user owning the current credential.
func (c *Client) FetchCurrentIdentity(ctx context.Context) (*User, error) {
	var payload identityResponse
	if err := c.get(ctx, endpoint("api", "auth", "me"), nil, &payload); err != nil {
		return nil, err
	}
	return &payload.User, nil
}

// UpdateProfile replaces the bio of userID.
func (c *Client) UpdateProfile(ctx context.Context, userID, bio string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id required")
	}
	return c.do(ctx, http.MethodPut, endpoint("api", "users", userID), profileRequest{Bio: bio}, nil)
}

func (c *Client) get(ctx context.Context, rel *url.URL, query url.Values, dest any) error {
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	return c.do(ctx, http.MethodGet, rel, nil, dest)
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body any, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.BearerToken()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp, rel.Path)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// endpoint joins path segments, keeping the escaped form so ids with reserved
// characters survive ResolveReference.
func endpoint(segments ...string) *url.URL {
	raw := make([]string, len(segments))
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		raw[i] = seg
		escaped[i] = url.PathEscape(seg)
	}
	return &url.URL{Path: "/" + strings.Join(raw, "/"), RawPath: "/" + strings.Join(escaped, "/")}
}

func decodeError(resp *http.Response, path string) error {
	apiErr := &Error{Status: resp.StatusCode, Path: path, Message: defaultErrorMessage}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

func viewerQuery(viewerID string) url.Values {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return nil
	}
	return url.Values{"viewer_id": []string{viewerID}}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
