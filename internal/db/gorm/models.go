// Package gorm provides GORM-based database operations for quickpen.
package gorm

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// GORM Models

// Sprint is the persisted form of a writing sprint. Rows are written once;
// only the tags column is updated afterwards.
type Sprint struct {
	ID               string                 `gorm:"primaryKey;type:text"`
	UserID           string                 `gorm:"index:idx_sprints_user;not null"`
	Content          string                 `gorm:"type:text;not null"`
	WordCount        int                    `gorm:"not null"`
	Duration         int                    `gorm:"not null"`
	ActualDuration   sql.NullInt64          // present only when the sprint ended early
	EndedEarly       bool                   `gorm:"not null;default:false"`
	Tags             models.JSONStringArray `gorm:"type:text"`
	CompletedAt      string                 `gorm:"not null"`
	CompletedAtEpoch int64                  `gorm:"index:idx_sprints_completed,sort:desc;not null"`
}

func (Sprint) TableName() string { return "sprints" }

// BeforeCreate assigns the document ID and timestamp pair.
func (s *Sprint) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CompletedAtEpoch == 0 {
		s.CompletedAtEpoch = time.Now().UnixMilli()
	}
	if s.CompletedAt == "" {
		s.CompletedAt = time.UnixMilli(s.CompletedAtEpoch).UTC().Format(time.RFC3339)
	}
	return nil
}

// User is an identity record. Anonymous users carry no email or password.
type User struct {
	UID            string         `gorm:"primaryKey;type:text"`
	Email          sql.NullString `gorm:"uniqueIndex:idx_users_email"`
	DisplayName    sql.NullString
	PasswordHash   sql.NullString
	IsAnonymous    bool   `gorm:"not null;default:false"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// BeforeCreate assigns the UID and timestamps.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UID == "" {
		u.UID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAtEpoch == 0 {
		u.CreatedAtEpoch = now.UnixMilli()
	}
	if u.CreatedAt == "" {
		u.CreatedAt = now.Format(time.RFC3339)
	}
	return nil
}

// AuthToken is a bearer session token.
type AuthToken struct {
	Token          string `gorm:"primaryKey;type:text"`
	UserUID        string `gorm:"index:idx_tokens_user;not null"`
	ExpiresAtEpoch int64  `gorm:"index:idx_tokens_expiry;not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (AuthToken) TableName() string { return "auth_tokens" }

// BeforeCreate assigns the token value and creation time.
func (t *AuthToken) BeforeCreate(tx *gorm.DB) error {
	if t.Token == "" {
		t.Token = uuid.NewString()
	}
	if t.CreatedAtEpoch == 0 {
		t.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}
