// Package auth implements email/password and anonymous identities with
// bearer token sessions.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	gormstore "github.com/quickpen-app/quickpen/internal/db/gorm"
	"github.com/quickpen-app/quickpen/pkg/models"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with an email already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken is returned for missing, unknown, or expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWeakPassword is returned when a password fails the length check.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
)

// StateListener is notified when a user signs in (non-nil) or out (nil).
type StateListener func(user *models.SerializedUser)

// Service handles sign-up, sign-in, and token verification.
type Service struct {
	users    *gormstore.UserStore
	tokenTTL time.Duration

	mu        sync.Mutex
	listeners map[int]StateListener
	nextID    int
}

// NewService creates an auth service backed by the given user store.
func NewService(users *gormstore.UserStore, tokenTTL time.Duration) *Service {
	return &Service{
		users:     users,
		tokenTTL:  tokenTTL,
		listeners: make(map[int]StateListener),
	}
}

// Session pairs an authenticated user with its bearer token.
type Session struct {
	User  *models.SerializedUser `json:"user"`
	Token string                 `json:"token"`
	// ExpiresAt is epoch milliseconds.
	ExpiresAt int64 `json:"expires_at"`
}

// SignUpWithEmail registers a new email/password account and signs it in.
func (s *Service) SignUpWithEmail(ctx context.Context, email, password, displayName string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 6 {
		return nil, ErrWeakPassword
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gormstore.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	row := &gormstore.User{
		Email:        sql.NullString{String: email, Valid: true},
		PasswordHash: sql.NullString{String: string(hash), Valid: true},
	}
	if displayName != "" {
		row.DisplayName = sql.NullString{String: displayName, Valid: true}
	}
	if _, err := s.users.CreateUser(ctx, row); err != nil {
		return nil, err
	}

	log.Info().Str("uid", row.UID).Msg("User signed up")
	return s.openSession(ctx, row)
}

// SignInWithEmail authenticates an existing email/password account.
func (s *Service) SignInWithEmail(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	row, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, gormstore.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !row.PasswordHash.Valid {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash.String), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	log.Debug().Str("uid", row.UID).Msg("User signed in")
	return s.openSession(ctx, row)
}

// SignInAnonymously creates a throwaway identity with no credentials.
func (s *Service) SignInAnonymously(ctx context.Context) (*Session, error) {
	row := &gormstore.User{IsAnonymous: true}
	if _, err := s.users.CreateUser(ctx, row); err != nil {
		return nil, err
	}
	log.Debug().Str("uid", row.UID).Msg("Anonymous user created")
	return s.openSession(ctx, row)
}

// SignOut revokes the token. Unknown tokens sign out silently.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.users.DeleteToken(ctx, token); err != nil {
		return err
	}
	s.notify(nil)
	return nil
}

// VerifyToken resolves a bearer token to the user it belongs to.
func (s *Service) VerifyToken(ctx context.Context, token string) (*models.SerializedUser, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	row, err := s.users.GetUserByToken(ctx, token)
	if errors.Is(err, gormstore.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return serialize(row), nil
}

// OnAuthStateChanged registers a listener and returns its unsubscribe func.
func (s *Service) OnAuthStateChanged(fn StateListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// PruneExpiredTokens deletes tokens past their expiry.
func (s *Service) PruneExpiredTokens(ctx context.Context) error {
	n, err := s.users.DeleteExpiredTokens(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug().Int64("count", n).Msg("Pruned expired auth tokens")
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, row *gormstore.User) (*Session, error) {
	tok, err := s.users.CreateToken(ctx, row.UID, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	user := serialize(row)
	s.notify(user)
	return &Session{User: user, Token: tok.Token, ExpiresAt: tok.ExpiresAtEpoch}, nil
}

func (s *Service) notify(user *models.SerializedUser) {
	s.mu.Lock()
	fns := make([]StateListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

func serialize(row *gormstore.User) *models.SerializedUser {
	return &models.SerializedUser{
		UID:         row.UID,
		Email:       row.Email.String,
		DisplayName: row.DisplayName.String,
		IsAnonymous: row.IsAnonymous,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
