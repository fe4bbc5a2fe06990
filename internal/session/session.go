package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/localstore"
	"github.com/five82/murmur/internal/twofactor"
	"github.com/five82/murmur/internal/validate"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in viewer.
	ErrNotAuthenticated = errors.New("sign in required")
	// ErrNotAuthor is returned when the viewer tries to change someone else's post.
	ErrNotAuthor = errors.New("only the author can change this post")

	errNoIdentity = errors.New("response missing user")
)

// Options configure a Store.
type Options struct {
	Logger *slog.Logger
	// OnSignedOut runs after the session is cleared by Logout or by the server
	// rejecting the credential during RefreshIdentity.
	OnSignedOut func()
	Now         func() time.Time
}

// Store owns the signed-in identity and the persisted bearer credential.
type Store struct {
	gw          api.AuthGateway
	storage     localstore.Store
	logger      *slog.Logger
	onSignedOut func()
	now         func() time.Time

	mu       sync.RWMutex
	identity *api.User
}

// New creates a Store. Call Restore once at startup.
func New(gw api.AuthGateway, storage localstore.Store, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		gw:          gw,
		storage:     storage,
		logger:      logger.With("component", "session"),
		onSignedOut: opts.OnSignedOut,
		now:         now,
	}
}

// BearerToken implements api.TokenSource.
func (s *Store) BearerToken() string {
	token, _ := s.storage.Get(localstore.KeyToken)
	return token
}

// IsAuthenticated reports whether an identity is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// Identity returns a copy of the signed-in user.
func (s *Store) Identity() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return api.User{}, false
	}
	return *s.identity, true
}

// UserID returns the signed-in user's id, or "" when anonymous.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.ID
}

// Login persists token and sets the identity.
func (s *Store) Login(token string, user api.User) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("login: empty token")
	}
	if err := s.storage.Set(localstore.KeyToken, token); err != nil {
		return fmt.Errorf("login: persist token: %w", err)
	}
	s.setIdentity(&user)
	s.logger.Info("signed in", "user_id", user.ID, "username", user.Username)
	return nil
}

// Logout tells the server the credential is no longer used, then clears the
// local session whether or not that call succeeded. Only a failure to clear
// local storage is returned.
func (s *Store) Logout(ctx context.Context) error {
	if s.BearerToken() != "" {
		if err := s.gw.Logout(ctx); err != nil {
			s.logger.Warn("logout notification failed", "err", err)
		}
	}
	err := s.clear()
	if s.onSignedOut != nil {
		s.onSignedOut()
	}
	return err
}

// Restore re-establishes the session from a persisted credential. It never
// fails: an expired or rejected credential is cleared and the viewer stays
// anonymous. It reports whether a session was restored.
func (s *Store) Restore(ctx context.Context) bool {
	token := s.BearerToken()
	if token == "" {
		return false
	}
	if s.expired(token) {
		s.logger.Info("stored credential expired")
		s.clearQuietly()
		return false
	}
	user, err := s.gw.FetchCurrentIdentity(ctx)
	if err != nil || user == nil {
		s.logger.Warn("session restore failed", "err", err)
		s.clearQuietly()
		return false
	}
	s.setIdentity(user)
	return true
}

// RefreshIdentity reloads the identity from the server. A rejected credential
// ends the session; an empty answer is an error and keeps the current one.
func (s *Store) RefreshIdentity(ctx context.Context) error {
	if s.BearerToken() == "" {
		return ErrNotAuthenticated
	}
	user, err := s.gw.FetchCurrentIdentity(ctx)
	if err == nil && user == nil {
		err = errNoIdentity
	}
	if err != nil {
		if api.IsUnauthorized(err) {
			s.clearQuietly()
			if s.onSignedOut != nil {
				s.onSignedOut()
			}
		}
		return fmt.Errorf("refresh identity: %w", err)
	}
	s.setIdentity(user)
	return nil
}

// SignInResult tells the caller whether a second factor is still needed.
type SignInResult struct {
	RequiresOTP bool
}

// SignIn performs the primary credential check. When the account has a second
// factor, the temporary token is stored and RequiresOTP is set.
func (s *Store) SignIn(ctx context.Context, form validate.Login) (SignInResult, error) {
	if err := validate.Struct(form); err != nil {
		return SignInResult{}, err
	}
	result, err := s.gw.Login(ctx, api.Credentials{Username: form.Username, Password: form.Password})
	if err != nil {
		return SignInResult{}, fmt.Errorf("sign in: %w", err)
	}
	if result.RequiresOTP {
		if err := s.storage.Set(localstore.KeyTempToken, result.TempToken); err != nil {
			return SignInResult{}, fmt.Errorf("sign in: persist temp token: %w", err)
		}
		return SignInResult{RequiresOTP: true}, nil
	}
	if err := s.loginResult(result); err != nil {
		return SignInResult{}, fmt.Errorf("sign in: %w", err)
	}
	return SignInResult{}, nil
}

// VerifySecondFactor completes a sign-in that required a one-time code.
func (s *Store) VerifySecondFactor(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := validate.Struct(validate.OTP{Code: code}); err != nil {
		return err
	}
	temp, ok := s.storage.Get(localstore.KeyTempToken)
	if !ok {
		return validate.Failed("otp", "session expired, log in again")
	}
	result, err := s.gw.VerifySecondFactor(ctx, temp, code)
	if err != nil {
		return fmt.Errorf("verify second factor: %w", err)
	}
	if err := s.loginResult(result); err != nil {
		return fmt.Errorf("verify second factor: %w", err)
	}
	if err := s.storage.Remove(localstore.KeyTempToken); err != nil {
		s.logger.Warn("failed to remove temp token", "err", err)
	}
	return nil
}

// Register creates an account and signs in. The one-time-password secret the
// server returns is kept until CompleteSetup.
func (s *Store) Register(ctx context.Context, form validate.Register) error {
	if err := validate.Struct(form); err != nil {
		return err
	}
	result, err := s.gw.Register(ctx, api.Registration{
		Username: strings.TrimSpace(form.Username),
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := s.Login(result.Token, result.User); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if result.OTPSecret != "" {
		if err := s.storage.Set(localstore.KeyOTPSecret, result.OTPSecret); err != nil {
			return fmt.Errorf("register: persist otp secret: %w", err)
		}
	}
	return nil
}

// PendingSetup returns the authenticator enrollment details while a
// second-factor setup is in progress.
func (s *Store) PendingSetup() (twofactor.Setup, bool) {
	secret, ok := s.storage.Get(localstore.KeyOTPSecret)
	if !ok {
		return twofactor.Setup{}, false
	}
	var account string
	if user, ok := s.Identity(); ok {
		account = user.Username
	}
	setup, err := twofactor.NewSetup(secret, account)
	if err != nil {
		s.logger.Warn("stored otp secret unusable", "err", err)
		return twofactor.Setup{}, false
	}
	return setup, true
}

// ConfirmSetup checks that the user's authenticator produces valid codes.
func (s *Store) ConfirmSetup(code string) error {
	code = strings.TrimSpace(code)
	if err := validate.Struct(validate.OTP{Code: code}); err != nil {
		return err
	}
	secret, ok := s.storage.Get(localstore.KeyOTPSecret)
	if !ok {
		return validate.Failed("otp", "no two-factor setup in progress")
	}
	if !twofactor.Check(secret, code) {
		return validate.Failed("otp", "invalid code")
	}
	return nil
}

// CompleteSetup forgets the setup secret and any temporary token.
func (s *Store) CompleteSetup() error {
	return errors.Join(
		s.storage.Remove(localstore.KeyOTPSecret),
		s.storage.Remove(localstore.KeyTempToken),
	)
}

// UpdateBio changes the viewer's bio. The identity shows the new bio at once
// and reverts if the server rejects it.
func (s *Store) UpdateBio(ctx context.Context, bio string) error {
	bio = strings.TrimSpace(bio)

	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	userID := s.identity.ID
	previous := s.identity.Bio
	next := *s.identity
	next.Bio = bio
	s.identity = &next
	s.mu.Unlock()

	if err := s.gw.UpdateProfile(ctx, userID, bio); err != nil {
		s.mu.Lock()
		if s.identity != nil && s.identity.ID == userID && s.identity.Bio == bio {
			reverted := *s.identity
			reverted.Bio = previous
			s.identity = &reverted
		}
		s.mu.Unlock()
		s.logger.Warn("profile update rolled back", "user_id", userID, "err", err)
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *Store) loginResult(result *api.AuthResult) error {
	if result == nil || result.Token == "" || result.User == nil {
		return errors.New("response missing token or user")
	}
	return s.Login(result.Token, *result.User)
}

func (s *Store) setIdentity(user *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.identity = nil
		return
	}
	u := *user
	s.identity = &u
}

func (s *Store) clear() error {
	s.setIdentity(nil)
	return errors.Join(
		s.storage.Remove(localstore.KeyToken),
		s.storage.Remove(localstore.KeyTempToken),
		s.storage.Remove(localstore.KeyOTPSecret),
	)
}

func (s *Store) clearQuietly() {
	if err := s.clear(); err != nil {
		s.logger.Warn("failed to clear stored session", "err", err)
	}
}

// expired reports whether token is a JWT whose exp claim has passed. Opaque
// tokens are never considered expired here; the server decides.
func (s *Store) expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(claims.ExpiresAt.Time)
}
