package api

import (
	"time"
)

const serverTimestampLayout = "2006-01-02 15:04:05"

// User mirrors the identity payload returned by /api/auth/me and the auth endpoints.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Bio       string `json:"bio,omitempty"`
	Image     string `json:"image,omitempty"`
	HasOTP    bool   `json:"has_otp"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Author is the denormalized user summary embedded in posts and comments.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
}

// Post describes a post as seen by the current viewer.
type Post struct {
	ID            string `json:"id"`
	AuthorID      string `json:"user_id"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
	LikesCount    int    `json:"likes_count"`
	CommentsCount int    `json:"comments_count"`
	IsLiked       bool   `json:"is_liked"`
	Author        Author `json:"users"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (p Post) ParsedCreatedAt() time.Time {
	return parseTime(p.CreatedAt)
}

// Comment is a comment on a post.
type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	AuthorID  string `json:"user_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Author    Author `json:"user"`
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (c Comment) ParsedCreatedAt() time.Time {
	return parseTime(c.CreatedAt)
}

// EnrichedComment is a comment carrying a full copy of its parent post.
type EnrichedComment struct {
	Comment
	Post Post `json:"post"`
}

// Stats holds the per-user aggregate counters shown on profile screens.
type Stats struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Likes    int `json:"likes"`
}

// Credentials is the primary login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the sign-up payload.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by login and second-factor verification. Either
// Token and User are set, or RequiresOTP and TempToken are.
type AuthResult struct {
	Token       string `json:"token,omitempty"`
	User        *User  `json:"user,omitempty"`
	RequiresOTP bool   `json:"requires_otp,omitempty"`
	TempToken   string `json:"temp_token,omitempty"`
}

// RegisterResult is returned by /api/auth/register.
type RegisterResult struct {
	Token     string `json:"token"`
	User      User   `json:"user"`
	OTPSecret string `json:"otp_secret"`
}

type identityResponse struct {
	User User `json:"user"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type verifyRequest struct {
	TempToken string `json:"temp_token"`
	OTPToken  string `json:"otp_token"`
}

type profileRequest struct {
	Bio string `json:"bio"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(serverTimestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
