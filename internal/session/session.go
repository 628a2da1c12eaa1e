// Package session tracks the signed-in identity of a storefront client
// and tells dependent stores (cart, wishlist) when it changes.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/notify"
)

const MinPasswordLength = 6

// Authenticator is the email/password identity service.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (models.Identity, string, error)
	SignUp(ctx context.Context, email, password string) (models.Identity, string, error)
}

// Change is published after every sign-in, sign-up or sign-out.
type Change struct {
	Identity models.Identity
	SignedIn bool
}

type SignUpForm struct {
	Email           string
	Password        string
	ConfirmPassword string
}

func (f SignUpForm) Validate() error {
	if strings.TrimSpace(f.Email) == "" {
		return apperr.Validation("email", "Email is required.")
	}
	if f.Password != f.ConfirmPassword {
		return apperr.Validation("confirm_password", "Passwords do not match.")
	}
	if len(f.Password) < MinPasswordLength {
		return apperr.Validation("password", "Password must be at least %d characters.", MinPasswordLength)
	}
	return nil
}

type State struct {
	auth   Authenticator
	logger *slog.Logger

	mu       sync.RWMutex
	identity models.Identity
	token    string
	signedIn bool

	changes notify.Hub[Change]
}

func New(auth Authenticator, logger *slog.Logger) *State {
	return &State{
		auth:   auth,
		logger: logger.With("component", "session"),
	}
}

// Identity returns the current identity and whether one is signed in.
func (s *State) Identity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.signedIn
}

func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe registers fn for session changes. fn runs synchronously on
// the goroutine that changed the session, with that caller's context.
func (s *State) Subscribe(fn func(context.Context, Change)) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

func (s *State) SignIn(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email", "Email is required.")
	}
	if password == "" {
		return apperr.Validation("password", "Password is required.")
	}

	id, token, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Warn("sign in failed", "email", email, "error", err)
		return err
	}

	s.set(ctx, id, token)
	return nil
}

func (s *State) SignUp(ctx context.Context, form SignUpForm) error {
	if err := form.Validate(); err != nil {
		return err
	}

	id, token, err := s.auth.SignUp(ctx, strings.TrimSpace(form.Email), form.Password)
	if err != nil {
		s.logger.Warn("sign up failed", "email", form.Email, "error", err)
		return err
	}

	s.set(ctx, id, token)
	return nil
}

// Restore installs a previously issued identity without contacting the
// identity service, e.g. from a token saved by an earlier run.
func (s *State) Restore(ctx context.Context, id models.Identity, token string) {
	s.set(ctx, id, token)
}

func (s *State) SignOut(ctx context.Context) {
	s.mu.Lock()
	wasSignedIn := s.signedIn
	s.identity = models.Identity{}
	s.token = ""
	s.signedIn = false
	s.mu.Unlock()

	if !wasSignedIn {
		return
	}

	s.logger.Info("signed out")
	s.changes.Publish(ctx, Change{})
}

func (s *State) set(ctx context.Context, id models.Identity, token string) {
	s.mu.Lock()
	s.identity = id
	s.token = token
	s.signedIn = true
	s.mu.Unlock()

	s.logger.Info("signed in", "user_id", id.UserID, "email", id.Email)
	s.changes.Publish(ctx, Change{Identity: id, SignedIn: true})
}
