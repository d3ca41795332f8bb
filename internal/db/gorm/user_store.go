// Package gorm provides GORM-based database operations for quickpen.
package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrUserNotFound is returned when a user lookup misses.
var ErrUserNotFound = errors.New("user not found")

// UserStore provides identity-related database operations.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new user store.
func NewUserStore(store *Store) *UserStore {
	return &UserStore{db: store.DB}
}

// CreateUser inserts a user row and returns it with its UID assigned.
func (s *UserStore) CreateUser(ctx context.Context, u *User) (*User, error) {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by UID.
func (s *UserStore) GetUser(ctx context.Context, uid string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateToken mints a bearer token for the user.
func (s *UserStore) CreateToken(ctx context.Context, userUID string, ttl time.Duration) (*AuthToken, error) {
	t := &AuthToken{
		UserUID:        userUID,
		ExpiresAtEpoch: time.Now().Add(ttl).UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetUserByToken resolves a non-expired token to its user.
func (s *UserStore) GetUserByToken(ctx context.Context, token string) (*User, error) {
	var t AuthToken
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at_epoch > ?", token, time.Now().UnixMilli()).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, t.UserUID)
}

// DeleteToken revokes a token. Deleting an absent token is not an error.
func (s *UserStore) DeleteToken(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&AuthToken{}, "token = ?", token).Error
}

// DeleteExpiredTokens prunes tokens past their expiry.
func (s *UserStore) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Delete(&AuthToken{}, "expires_at_epoch <= ?", time.Now().UnixMilli())
	return result.RowsAffected, result.Error
}
